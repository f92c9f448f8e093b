package codec

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/flate"
)

// blockSize is the edge length of the square blocks the delta-block codec
// diffs against the previous frame, matching ZMBV's default block size.
const blockSize = 16

// NewDeltaBlockDescriptor returns the descriptor for the ZMBV-flavored
// delta-block codec at the given DEFLATE compression level (0-9, mapped onto
// flate.NoCompression..flate.BestCompression). Its dependency
// (klauspost/compress/flate) is vendored into this module, so it is always
// available and is the codec "auto" prefers.
func NewDeltaBlockDescriptor(compressionLevel int) Descriptor {
	return Descriptor{
		ID:              "deltablock",
		Description:     "ZMBV-style block delta with DEFLATE compression",
		FourCC:          "ZMBV",
		AVICompression:  "ZMBV",
		UsesInterframes: true,
		New:             func() Codec { return &deltaBlockCodec{level: flateLevel(compressionLevel)} },
	}
}

func flateLevel(pngLevel int) int {
	if pngLevel < 0 {
		pngLevel = 0
	}
	if pngLevel > 9 {
		pngLevel = 9
	}
	return pngLevel
}

type deltaBlockCodec struct {
	level         int
	width, height int
	prev          []byte
	delta         []byte
}

func (c *deltaBlockCodec) Init(width, height, left, top int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("deltablock: invalid dimensions %dx%d", width, height)
	}
	c.width, c.height = width, height
	c.prev = make([]byte, width*height)
	c.delta = make([]byte, width*height)
	// Worst case: raw frame expands slightly under DEFLATE; double the raw
	// size plus a safety margin covers it comfortably.
	return width*height*2 + 512, nil
}

func (c *deltaBlockCodec) Frame(source []byte, wantKeyframe bool, dest []byte) (int, error) {
	frameLen := c.width * c.height
	if len(source) < frameLen {
		return 0, fmt.Errorf("deltablock: source too short: have %d, want %d", len(source), frameLen)
	}

	if wantKeyframe {
		copy(c.delta, source[:frameLen])
	} else {
		c.diffBlocks(source)
	}

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, c.level)
	if err != nil {
		return 0, fmt.Errorf("deltablock: new flate writer: %w", err)
	}
	if _, err := fw.Write(c.delta); err != nil {
		return 0, fmt.Errorf("deltablock: compress: %w", err)
	}
	if err := fw.Close(); err != nil {
		return 0, fmt.Errorf("deltablock: flush: %w", err)
	}

	if buf.Len() > len(dest) {
		return 0, fmt.Errorf("deltablock: destination buffer too small: need %d, have %d", buf.Len(), len(dest))
	}
	n := copy(dest, buf.Bytes())

	copy(c.prev, source[:frameLen])
	return n, nil
}

// diffBlocks XORs each blockSize x blockSize block of source against the
// previous frame into c.delta. Unchanged blocks collapse to all-zero runs,
// which DEFLATE compresses to almost nothing.
func (c *deltaBlockCodec) diffBlocks(source []byte) {
	for by := 0; by < c.height; by += blockSize {
		bh := minInt(blockSize, c.height-by)
		for bx := 0; bx < c.width; bx += blockSize {
			bw := minInt(blockSize, c.width-bx)
			for y := 0; y < bh; y++ {
				row := (by+y)*c.width + bx
				for x := 0; x < bw; x++ {
					c.delta[row+x] = source[row+x] ^ c.prev[row+x]
				}
			}
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (c *deltaBlockCodec) End() error {
	c.prev = nil
	c.delta = nil
	return nil
}
