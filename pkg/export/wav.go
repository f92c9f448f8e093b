package export

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/atari800go/mediaexport/internal/leio"
)

// WAVSession streams a RIFF/WAVE PCM file: a 44-byte header written with
// placeholder sizes at open, patched in place on close once the real byte
// counts are known.
type WAVSession struct {
	f      *os.File
	logger *log.Logger

	audio AudioFormat
	fps   float64

	framesWritten uint32
	byteswritten  int64
}

// OpenWAV writes a 44-byte RIFF/WAVE header with zero-valued placeholders
// and captures the audio format for the session's lifetime.
func OpenWAV(path string, audio AudioFormat, fps float64, logger *log.Logger) (*WAVSession, error) {
	if logger == nil {
		logger = log.Default()
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, newError(IoError, "OpenWAV", err)
	}

	w := leio.New(f)
	w.PutFourCC("RIFF")
	w.PutU32LE(0) // patched at close
	w.PutFourCC("WAVE")

	w.PutFourCC("fmt ")
	w.PutU32LE(16)
	w.PutU16LE(1) // PCM
	w.PutU16LE(uint16(audio.Channels))
	w.PutU32LE(uint32(audio.SampleRate))
	w.PutU32LE(uint32(audio.SampleRate * audio.Channels * audio.SampleWidth))
	w.PutU16LE(uint16(audio.Channels * audio.SampleWidth))
	w.PutU16LE(uint16(audio.SampleWidth * 8))

	w.PutFourCC("data")
	w.PutU32LE(0) // patched at close

	if w.Err != nil {
		f.Close()
		return nil, newError(IoError, "OpenWAV", w.Err)
	}

	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return nil, newError(IoError, "OpenWAV", err)
	}
	if pos != 44 {
		f.Close()
		return nil, newError(IoError, "OpenWAV", fmt.Errorf("header wrote %d bytes, want 44", pos))
	}

	return &WAVSession{f: f, logger: logger, audio: audio, fps: fps}, nil
}

// WriteSamples appends n samples through the little-endian writer and
// updates the running byte/frame counters. Returns the number of bytes
// written. It returns 0 with no error when buf holds fewer bytes than n
// samples need, and 0 with a SizeLimitReached error once the running total
// exceeds MaxRecordingSize (the samples of that call are already written).
func (s *WAVSession) WriteSamples(buf []byte, n int) (int, error) {
	written, err := leio.PutBytesLE(s.f, s.audio.SampleWidth, n*s.audio.Channels, buf)
	if err != nil {
		return 0, newError(IoError, "WriteSamples", err)
	}
	if written != n*s.audio.Channels*s.audio.SampleWidth {
		return 0, nil
	}

	s.byteswritten += int64(written)
	s.framesWritten++
	if s.byteswritten > MaxRecordingSize {
		return 0, newError(SizeLimitReached, "WriteSamples", nil)
	}
	return written, nil
}

// Close pads to an even byte if the data size is odd, then patches the
// RIFF length field at offset 4 and the data length field at offset 40.
func (s *WAVSession) Close() error {
	defer s.f.Close()

	aligned := int64(0)
	if s.byteswritten%2 != 0 {
		if _, err := s.f.Write([]byte{0}); err != nil {
			return newError(IoError, "Close", err)
		}
		aligned = 1
	}

	if _, err := s.f.Seek(4, io.SeekStart); err != nil {
		return newError(IoError, "Close", err)
	}
	w := leio.New(s.f)
	w.PutU32LE(uint32(s.byteswritten + 36 + aligned))
	if w.Err != nil {
		return newError(IoError, "Close", w.Err)
	}

	if _, err := s.f.Seek(40, io.SeekStart); err != nil {
		return newError(IoError, "Close", err)
	}
	w = leio.New(s.f)
	w.PutU32LE(uint32(s.byteswritten))
	if w.Err != nil {
		return newError(IoError, "Close", w.Err)
	}

	return nil
}

// ElapsedSeconds reports frames_written/fps.
func (s *WAVSession) ElapsedSeconds() float64 { return float64(s.framesWritten) / s.fps }

// CurrentSize reports the approximate running byte total.
func (s *WAVSession) CurrentSize() int64 { return s.byteswritten }

// Description reports the short session label.
func (s *WAVSession) Description() string { return "WAV" }
