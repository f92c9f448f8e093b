package export

import (
	"bufio"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/atari800go/mediaexport/internal/screenadapter"
)

// SavePNG writes an 8-bit PNG still image of adapter's recording window to
// path at the given compression level (0-9). second selects the interlace
// path (direct RGB, per-channel averaged); without it, the image is
// indexed-color with the full 256-entry palette attached.
func SavePNG(path string, adapter *screenadapter.Adapter, primary, second screenadapter.Screen, compressionLevel int) error {
	f, err := os.Create(path)
	if err != nil {
		return newError(IoError, "SavePNG", err)
	}
	defer f.Close()

	img := buildStillImage(adapter, primary, second)

	buf := bufio.NewWriter(f)
	enc := &png.Encoder{CompressionLevel: pngLevel(compressionLevel)}
	if err := enc.Encode(buf, img); err != nil {
		return newError(IoError, "SavePNG", err)
	}
	if err := buf.Flush(); err != nil {
		return newError(IoError, "SavePNG", err)
	}
	return nil
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

func buildStillImage(adapter *screenadapter.Adapter, primary, second screenadapter.Screen) image.Image {
	width, height := adapter.Geometry.Width, adapter.Geometry.Height

	if second == nil {
		pal := make(color.Palette, 256)
		for i := range pal {
			r, g, b := adapter.Palette.R(byte(i)), adapter.Palette.G(byte(i)), adapter.Palette.B(byte(i))
			pal[i] = color.RGBA{R: r, G: g, B: b, A: 0xff}
		}
		img := image.NewPaletted(image.Rect(0, 0, width, height), pal)
		for y := 0; y < height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+width], adapter.Row(primary, y))
		}
		return img
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := adapter.RowRGB(primary, second, y)
		for x, px := range row {
			img.Set(x, y, color.RGBA{R: px[0], G: px[1], B: px[2], A: 0xff})
		}
	}
	return img
}
