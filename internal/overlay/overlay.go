// Package overlay burns a one-line debug HUD onto an RGBA image using the
// embedded Go Regular font, mirroring the font-loading pattern the teacher
// project's template renderer uses for on-image text.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	once    sync.Once
	face    font.Face
	faceErr error
)

// faceAt12pt lazily parses the embedded Go Regular font at 12pt/72dpi. The
// face is immutable and safe to share across frames.
func faceAt12pt() (font.Face, error) {
	once.Do(func() {
		parsed, err := opentype.Parse(goregular.TTF)
		if err != nil {
			faceErr = fmt.Errorf("overlay: parse embedded font: %w", err)
			return
		}
		face, faceErr = opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    12,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	})
	return face, faceErr
}

// Draw burns text into the top-left corner of img (an RGBA image, modified
// in place) in white over a translucent black backing band so the HUD stays
// legible against any background.
func Draw(img *image.RGBA, text string) error {
	f, err := faceAt12pt()
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	bandHeight := 16
	if bandHeight > bounds.Dy() {
		bandHeight = bounds.Dy()
	}
	band := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+bandHeight)
	draw.Draw(img, band, image.NewUniform(color.NRGBA{0, 0, 0, 160}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: f,
		Dot:  fixed.P(bounds.Min.X+4, bounds.Min.Y+12),
	}
	d.DrawString(text)
	return nil
}
