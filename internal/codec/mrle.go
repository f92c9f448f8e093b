package codec

import "fmt"

// MRLEDescriptor registers the scanline run-length codec. It needs no
// external dependency, so it is always available and serves as the "auto"
// fallback when the delta-block codec cannot be used.
var MRLEDescriptor = Descriptor{
	ID:              "mrle",
	Description:     "Microsoft Run-Length Encoding, 8-bit paletted",
	FourCC:          "MRLE",
	AVICompression:  "mrle",
	UsesInterframes: true,
	New:             func() Codec { return &mrleCodec{} },
}

// mrleCodec implements a byte-oriented scanline RLE codec. A keyframe
// RLE-encodes every scan line of the raw frame; an inter-frame RLE-encodes
// the XOR delta against the previously encoded frame, which collapses to
// long zero runs when little has changed.
type mrleCodec struct {
	width, height int
	prev          []byte
}

func (c *mrleCodec) Init(width, height, left, top int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("mrle: invalid dimensions %dx%d", width, height)
	}
	c.width, c.height = width, height
	c.prev = make([]byte, width*height)
	// Worst case: every byte becomes its own 2-byte raw/run pair.
	return width * height * 2, nil
}

func (c *mrleCodec) Frame(source []byte, wantKeyframe bool, dest []byte) (int, error) {
	if len(source) < c.width*c.height {
		return 0, fmt.Errorf("mrle: source too short: have %d, want %d", len(source), c.width*c.height)
	}

	var payload []byte
	if wantKeyframe {
		payload = source[:c.width*c.height]
	} else {
		payload = make([]byte, c.width*c.height)
		for i := range payload {
			payload[i] = source[i] ^ c.prev[i]
		}
	}

	n := 0
	for y := 0; y < c.height; y++ {
		row := payload[y*c.width : (y+1)*c.width]
		written, err := rleEncodeRow(row, dest[n:])
		if err != nil {
			return 0, fmt.Errorf("mrle: row %d: %w", y, err)
		}
		n += written
	}

	copy(c.prev, source[:c.width*c.height])
	return n, nil
}

func (c *mrleCodec) End() error {
	c.prev = nil
	return nil
}

// rleEncodeRow encodes one scan line using the same run rule as the
// original's PCX encoder: a count byte (0xC0|run, 1<=run<=63) followed by the
// repeated value, except a single byte below 0xC0 may be emitted raw. Runs
// never cross the row boundary by construction, since the caller passes one
// row at a time.
func rleEncodeRow(row []byte, dest []byte) (int, error) {
	n := 0
	x := 0
	for x < len(row) {
		v := row[x]
		run := 1
		for x+run < len(row) && row[x+run] == v && run < 63 {
			run++
		}
		if run == 1 && v < 0xC0 {
			if n+1 > len(dest) {
				return 0, fmt.Errorf("destination buffer too small")
			}
			dest[n] = v
			n++
		} else {
			if n+2 > len(dest) {
				return 0, fmt.Errorf("destination buffer too small")
			}
			dest[n] = 0xC0 | byte(run)
			dest[n+1] = v
			n += 2
		}
		x += run
	}
	return n, nil
}
