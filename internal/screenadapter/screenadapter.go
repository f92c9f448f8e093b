// Package screenadapter crops a host emulator's screen buffer to a recording
// window and exposes row-by-row, palette-resolved pixel access for the still
// and video encoders.
package screenadapter

// Screen is the collaborator interface standing in for the emulator's raster
// buffer: a flat array of palette indices with a fixed stride.
type Screen interface {
	// Stride returns the number of bytes (pixels) per scan line in the
	// underlying buffer, which may be wider than the visible window.
	Stride() int
	// At returns the palette index at (x, y) in buffer coordinates (not
	// cropped to the recording window).
	At(x, y int) byte
}

// Palette is the collaborator interface standing in for the emulator's
// 256-entry 24-bit color table.
type Palette interface {
	R(i byte) byte
	G(i byte) byte
	B(i byte) byte
}

// Geometry is the recording window derived once at session open.
type Geometry struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Adapter exposes cropped, optionally-interlace-blended pixel access over a
// Screen and Palette pair.
type Adapter struct {
	Screen   Screen
	Palette  Palette
	Geometry Geometry
}

// New builds an Adapter. left/top/x2/y2 mirror the emulator's visible-window
// coordinates (Screen_visible_x1/y1/x2/y2 in the original); width is derived
// as x2-left and height as y2-top, matching set_video_margins in the
// original.
func New(screen Screen, palette Palette, left, top, x2, y2 int) *Adapter {
	return &Adapter{
		Screen:  screen,
		Palette: palette,
		Geometry: Geometry{
			Left:   left,
			Top:    top,
			Width:  x2 - left,
			Height: y2 - top,
		},
	}
}

// Row returns the raw palette-index bytes of scan line y (0-based within the
// recording window) from the given screen.
func (a *Adapter) Row(screen Screen, y int) []byte {
	row := make([]byte, a.Geometry.Width)
	sy := a.Geometry.Top + y
	for x := 0; x < a.Geometry.Width; x++ {
		row[x] = screen.At(a.Geometry.Left+x, sy)
	}
	return row
}

// RowRGB returns the resolved R,G,B triples of scan line y, optionally
// blended with the corresponding row of a second screen (interlace capture).
// When second is nil, each palette index is resolved to its own color.
func (a *Adapter) RowRGB(primary, second Screen, y int) [][3]byte {
	sy := a.Geometry.Top + y
	out := make([][3]byte, a.Geometry.Width)
	for x := 0; x < a.Geometry.Width; x++ {
		sx := a.Geometry.Left + x
		p1 := primary.At(sx, sy)
		if second == nil {
			out[x] = [3]byte{a.Palette.R(p1), a.Palette.G(p1), a.Palette.B(p1)}
			continue
		}
		p2 := second.At(sx, sy)
		out[x] = blend(a.Palette, p1, p2)
	}
	return out
}

// blend averages the resolved colors of two palette indices, channel by
// channel, rounding down as the original's (a+b)>>1 does.
func blend(pal Palette, a, b byte) [3]byte {
	return [3]byte{
		byte((uint16(pal.R(a)) + uint16(pal.R(b))) >> 1),
		byte((uint16(pal.G(a)) + uint16(pal.G(b))) >> 1),
		byte((uint16(pal.B(a)) + uint16(pal.B(b))) >> 1),
	}
}
