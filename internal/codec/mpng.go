package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/atari800go/mediaexport/internal/overlay"
	"github.com/atari800go/mediaexport/internal/screenadapter"
)

// NewMPNGDescriptor returns the descriptor for the per-frame (Motion-PNG)
// codec. Every frame is independently PNG-encoded, so UsesInterframes is
// false and every emitted frame is necessarily a keyframe. This codec is
// never the "auto" default.
func NewMPNGDescriptor(compressionLevel int, overlayText bool) Descriptor {
	return Descriptor{
		ID:              "mpng",
		Description:     "per-frame PNG (8-bit indexed), no inter-frame deltas",
		FourCC:          "MPNG",
		AVICompression:  "MPNG",
		UsesInterframes: false,
		New: func() Codec {
			return &mpngCodec{level: pngLevel(compressionLevel), overlayText: overlayText}
		},
	}
}

func pngLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 7:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

type mpngCodec struct {
	level       png.CompressionLevel
	overlayText bool
	width       int
	height      int
	palette     color.Palette
	frameCount  int
}

// SetPalette lets the session provide the live 256-entry palette to the
// codec, since the codec contract's Init only carries geometry.
// AVISession.SetPalette forwards here automatically whenever the selected
// codec implements this method.
func (c *mpngCodec) SetPalette(p screenadapter.Palette) {
	pal := make(color.Palette, 256)
	for i := 0; i < 256; i++ {
		pal[i] = color.RGBA{R: p.R(byte(i)), G: p.G(byte(i)), B: p.B(byte(i)), A: 0xff}
	}
	c.palette = pal
}

func (c *mpngCodec) Init(width, height, left, top int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("mpng: invalid dimensions %dx%d", width, height)
	}
	c.width, c.height = width, height
	// PNG rarely exceeds the raw frame size even in the worst case; give
	// generous headroom since this is only a scratch-buffer sizing hint.
	return width*height + 4096, nil
}

func (c *mpngCodec) Frame(source []byte, wantKeyframe bool, dest []byte) (int, error) {
	frameLen := c.width * c.height
	if len(source) < frameLen {
		return 0, fmt.Errorf("mpng: source too short: have %d, want %d", len(source), frameLen)
	}

	img := image.NewPaletted(image.Rect(0, 0, c.width, c.height), c.effectivePalette())
	copy(img.Pix, source[:frameLen])

	var encoded *bytes.Buffer
	if c.overlayText {
		rgba := image.NewRGBA(img.Bounds())
		copyToRGBA(rgba, img)
		text := fmt.Sprintf("mpng frame %d", c.frameCount)
		if err := overlay.Draw(rgba, text); err != nil {
			return 0, fmt.Errorf("mpng: overlay: %w", err)
		}
		encoded = &bytes.Buffer{}
		enc := &png.Encoder{CompressionLevel: c.level}
		if err := enc.Encode(encoded, rgba); err != nil {
			return 0, fmt.Errorf("mpng: encode: %w", err)
		}
	} else {
		encoded = &bytes.Buffer{}
		enc := &png.Encoder{CompressionLevel: c.level}
		if err := enc.Encode(encoded, img); err != nil {
			return 0, fmt.Errorf("mpng: encode: %w", err)
		}
	}

	if encoded.Len() > len(dest) {
		return 0, fmt.Errorf("mpng: destination buffer too small: need %d, have %d", encoded.Len(), len(dest))
	}
	n := copy(dest, encoded.Bytes())
	c.frameCount++
	return n, nil
}

func (c *mpngCodec) End() error {
	c.palette = nil
	return nil
}

func (c *mpngCodec) effectivePalette() color.Palette {
	if c.palette != nil {
		return c.palette
	}
	pal := make(color.Palette, 256)
	for i := range pal {
		pal[i] = color.Gray{Y: uint8(i)}
	}
	return pal
}

// copyToRGBA expands a paletted image into an RGBA one so overlay text (which
// needs alpha blending) can be composited on top.
func copyToRGBA(dst *image.RGBA, src *image.Paletted) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
}
