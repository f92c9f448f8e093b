package export

import (
	"bufio"
	"os"

	"github.com/atari800go/mediaexport/internal/leio"
	"github.com/atari800go/mediaexport/internal/screenadapter"
)

// SavePCX writes a ZSoft version-5, 8-bit RLE-encoded PCX still image of
// adapter's recording window to path. second, if non-nil, selects the
// interlace path: 3 planes (R,G,B), no palette, each scan line's channels
// averaged between primary and second before encoding. Without second, 1
// plane, paletted, with a 256-entry palette appended after a 0x0C marker.
func SavePCX(path string, adapter *screenadapter.Adapter, primary, second screenadapter.Screen) error {
	f, err := os.Create(path)
	if err != nil {
		return newError(IoError, "SavePCX", err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	w := leio.New(buf)

	interlaced := second != nil
	width, height := adapter.Geometry.Width, adapter.Geometry.Height

	w.PutBytes([]byte{0x0a, 0x05, 0x01, 0x08})
	w.PutU16LE(0)
	w.PutU16LE(0)
	w.PutU16LE(uint16(width - 1))
	w.PutU16LE(uint16(height - 1))
	w.PutU16LE(0)
	w.PutU16LE(0)
	w.PutBytes(make([]byte, 48)) // EGA palette, unused for 8bpp
	w.PutBytes([]byte{0})
	if interlaced {
		w.PutBytes([]byte{3})
	} else {
		w.PutBytes([]byte{1})
	}
	w.PutU16LE(uint16(width))
	w.PutU16LE(1)
	w.PutU16LE(uint16(width))
	w.PutU16LE(uint16(height))
	w.PutBytes(make([]byte, 54))

	if interlaced {
		for y := 0; y < height; y++ {
			rgb := adapter.RowRGB(primary, second, y)
			for plane := 0; plane < 3; plane++ {
				row := make([]byte, width)
				for x, px := range rgb {
					row[x] = px[plane]
				}
				pcxEncodeRow(w, row)
			}
		}
	} else {
		for y := 0; y < height; y++ {
			pcxEncodeRow(w, adapter.Row(primary, y))
		}
		w.PutBytes([]byte{0x0c})
		for i := 0; i < 256; i++ {
			r, g, b := adapter.Palette.R(byte(i)), adapter.Palette.G(byte(i)), adapter.Palette.B(byte(i))
			w.PutBytes([]byte{r, g, b})
		}
	}

	if w.Err != nil {
		return newError(IoError, "SavePCX", w.Err)
	}
	if err := buf.Flush(); err != nil {
		return newError(IoError, "SavePCX", err)
	}
	return nil
}

// pcxEncodeRow RLE-encodes one scan line: a run of 1 byte with value <0xC0
// is raw; otherwise a count byte (0xC0|run, 1<=run<=63) precedes the value.
// Runs never cross the row boundary.
func pcxEncodeRow(w *leio.Writer, row []byte) {
	x := 0
	for x < len(row) {
		v := row[x]
		run := 1
		for x+run < len(row) && row[x+run] == v && run < 0x3f {
			run++
		}
		if run == 1 && v < 0xc0 {
			w.PutBytes([]byte{v})
		} else {
			w.PutBytes([]byte{0xc0 | byte(run), v})
		}
		x += run
	}
}
