package export

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWAVCloseProducesExpectedLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	s, err := OpenWAV(path, AudioFormat{Channels: 2, SampleRate: 44100, SampleWidth: 2}, 50.0, nil)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}

	// 3 frames of stereo 16-bit audio: 3*2*2 = 12 bytes of data.
	samples := make([]byte, 12)
	for i := range samples {
		samples[i] = byte(i)
	}
	n, err := s.WriteSamples(samples, 3)
	if err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if n != 12 {
		t.Fatalf("WriteSamples wrote %d bytes, want 12", n)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 56 {
		t.Fatalf("file length = %d, want 56 (44-byte header + 12 bytes data, no pad)", len(data))
	}

	riffSize := le32(data[4:8])
	if riffSize != 48 {
		t.Fatalf("RIFF size field = %d, want 48", riffSize)
	}
	dataSize := le32(data[40:44])
	if dataSize != 12 {
		t.Fatalf("data size field = %d, want 12", dataSize)
	}
}

func TestWAVCloseAlignsOddDataSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.wav")

	s, err := OpenWAV(path, AudioFormat{Channels: 1, SampleRate: 8000, SampleWidth: 1}, 50.0, nil)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	if _, err := s.WriteSamples([]byte{1, 2, 3}, 3); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// 44-byte header + 3 bytes data + 1 pad byte = 48.
	if len(data) != 48 {
		t.Fatalf("file length = %d, want 48", len(data))
	}
	if le32(data[40:44]) != 3 {
		t.Fatalf("data size field = %d, want 3 (unpadded)", le32(data[40:44]))
	}
	if le32(data[4:8]) != 3+36+1 {
		t.Fatalf("RIFF size field = %d, want %d", le32(data[4:8]), 3+36+1)
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
