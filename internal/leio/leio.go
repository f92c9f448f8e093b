// Package leio writes little-endian integers and element arrays to a byte
// sink regardless of host endianness.
package leio

import (
	"encoding/binary"
	"io"
)

// Writer wraps an io.Writer and remembers the first error it encounters, so
// callers can chain a sequence of Put calls and check the error once at the
// end, the way icza/mjpeg's aviWriter does.
type Writer struct {
	W   io.Writer
	Err error
}

// New wraps w in a sticky-error Writer.
func New(w io.Writer) *Writer {
	return &Writer{W: w}
}

// PutU16LE writes v as two bytes, low byte first.
func (w *Writer) PutU16LE(v uint16) {
	if w.Err != nil {
		return
	}
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, w.Err = w.W.Write(buf[:])
}

// PutU32LE writes v as four bytes, low byte first.
func (w *Writer) PutU32LE(v uint32) {
	if w.Err != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, w.Err = w.W.Write(buf[:])
}

// PutFourCC writes the 4-byte tag s verbatim. s must be exactly 4 bytes.
func (w *Writer) PutFourCC(s string) {
	if w.Err != nil {
		return
	}
	if len(s) != 4 {
		panic("leio: FourCC must be 4 bytes, got " + s)
	}
	_, w.Err = io.WriteString(w.W, s)
}

// PutBytes writes raw bytes unaltered.
func (w *Writer) PutBytes(b []byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.W.Write(b)
}

// PutBytesLE writes count elements of elemSize (1 or 2) read from src,
// byte-swapping 2-byte elements on a big-endian host. Element sizes other
// than 1 or 2 are not supported.
func PutBytesLE(w io.Writer, elemSize int, count int, src []byte) (int, error) {
	switch elemSize {
	case 1:
		n := count
		if n > len(src) {
			n = len(src)
		}
		return w.Write(src[:n])
	case 2:
		n := count * 2
		if n > len(src) {
			n = len(src)
		}
		if !isBigEndianHost() {
			return w.Write(src[:n])
		}
		swapped := make([]byte, n)
		for i := 0; i+1 < n; i += 2 {
			swapped[i] = src[i+1]
			swapped[i+1] = src[i]
		}
		return w.Write(swapped)
	default:
		panic("leio: PutBytesLE only supports element sizes 1 or 2")
	}
}

// isBigEndianHost reports whether the running host is big-endian. Go's
// supported platforms are overwhelmingly little-endian, so this check exists
// purely to satisfy the byte-order abstraction spec.md §4.A requires; it is
// never true on any mainstream Go target.
func isBigEndianHost() bool {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	return buf[0] == 0
}
