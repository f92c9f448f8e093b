package export

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/atari800go/mediaexport/internal/codec"
	"github.com/atari800go/mediaexport/internal/screenadapter"
)

// stubCodec returns a fixed-size frame of incrementing bytes, for exercising
// the AVI writer's framing and index logic independent of real codec math.
type stubCodec struct {
	size int
}

func (c *stubCodec) Init(width, height, left, top int) (int, error) { return c.size, nil }
func (c *stubCodec) Frame(source []byte, wantKeyframe bool, dest []byte) (int, error) {
	for i := 0; i < c.size; i++ {
		dest[i] = byte(i)
	}
	return c.size, nil
}
func (c *stubCodec) End() error { return nil }

func stubRegistry(size int) *codec.Registry {
	desc := codec.Descriptor{
		ID:              "stub",
		FourCC:          "STUB",
		AVICompression:  "STUB",
		UsesInterframes: true,
		New:             func() codec.Codec { return &stubCodec{size: size} },
	}
	return codec.NewRegistry("stub", desc)
}

func TestAVIVideoOnlySingleFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	geom := geometryFixture()

	s, err := OpenAVI(path, DefaultConfig(), stubRegistry(100), geom, 59.92, nil, nil, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}
	if err := s.AddVideoFrame(make([]byte, geom.Width*geom.Height)); err != nil {
		t.Fatalf("AddVideoFrame: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatal("file does not start with RIFF")
	}
	if !bytes.Contains(data, []byte("AVI ")) || !bytes.Contains(data, []byte("movi")) || !bytes.Contains(data, []byte("idx1")) {
		t.Fatal("missing expected top-level chunks")
	}

	riffSize := le32(data[4:8])
	if int(riffSize) != len(data)-8 {
		t.Fatalf("RIFF size field = %d, want %d", riffSize, len(data)-8)
	}
}

func TestAVIRejectsSecondVideoAddWithoutAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	geom := geometryFixture()
	audio := AudioFormat{Channels: 2, SampleRate: 44100, SampleWidth: 2}

	s, err := OpenAVI(path, DefaultConfig(), stubRegistry(100), geom, 50.0, nil, &audio, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}
	defer s.Close()

	frame := make([]byte, geom.Width*geom.Height)
	if err := s.AddVideoFrame(frame); err != nil {
		t.Fatalf("first AddVideoFrame: %v", err)
	}
	if err := s.AddVideoFrame(frame); err == nil {
		t.Fatal("expected second AddVideoFrame without intervening audio to fail")
	}
}

func TestAVIVideoAudioSingleFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	geom := geometryFixture()
	audio := AudioFormat{Channels: 2, SampleRate: 44100, SampleWidth: 2}

	s, err := OpenAVI(path, DefaultConfig(), stubRegistry(100), geom, 50.0, nil, &audio, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}

	frame := make([]byte, geom.Width*geom.Height)
	if err := s.AddVideoFrame(frame); err != nil {
		t.Fatalf("AddVideoFrame: %v", err)
	}
	// One video frame's worth of audio, in channel-interleaved frames
	// (this implementation's AddAudioSamples counts frames, not the flat
	// per-channel sample count the original tracked).
	samplesPerFrame := audio.SampleRate / 50
	samples := make([]byte, samplesPerFrame*audio.Channels*audio.SampleWidth)
	if err := s.AddAudioSamples(samples, samplesPerFrame); err != nil {
		t.Fatalf("AddAudioSamples: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func geometryFixture() screenadapter.Geometry {
	return screenadapter.Geometry{Left: 0, Top: 0, Width: 32, Height: 16}
}

// tintPalette is deliberately far from grayscale (R != G != B for every
// index) so a test can tell whether a codec actually received it.
type tintPalette struct{}

func (tintPalette) R(i byte) byte { return i }
func (tintPalette) G(i byte) byte { return 255 - i }
func (tintPalette) B(i byte) byte { return 128 }

func TestAVIMPNGHonorsNonGrayscalePalette(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	geom := screenadapter.Geometry{Left: 0, Top: 0, Width: 4, Height: 4}
	reg := codec.NewRegistry("mpng", codec.NewMPNGDescriptor(6, false))

	cfg := DefaultConfig()
	cfg.VideoCodec = "mpng"

	s, err := OpenAVI(path, cfg, reg, geom, 30.0, tintPalette{}, nil, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}

	const index = 9
	frame := make([]byte, geom.Width*geom.Height)
	for i := range frame {
		frame[i] = index
	}
	if err := s.AddVideoFrame(frame); err != nil {
		t.Fatalf("AddVideoFrame: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	chunkAt := bytes.Index(data, []byte("00dc"))
	if chunkAt < 0 {
		t.Fatal("no 00dc chunk found")
	}
	size := le32(data[chunkAt+4 : chunkAt+8])
	pngBytes := data[chunkAt+8 : chunkAt+8+int(size)]

	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	wantR, wantG, wantB := byte(index), byte(255-index), byte(128)
	if byte(r>>8) != wantR || byte(g>>8) != wantG || byte(b>>8) != wantB {
		t.Fatalf("decoded pixel = (%d,%d,%d), want (%d,%d,%d)", r>>8, g>>8, b>>8, wantR, wantG, wantB)
	}
}
