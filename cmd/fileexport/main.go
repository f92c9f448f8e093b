// fileexport drives this module's recording and still-capture pipeline
// against a synthetic test-pattern screen, for manual exercising and demos
// of the AVI/WAV/PCX/PNG writers without a real emulator attached.
//
// Usage:
//
//	fileexport record --out <file.avi|file.wav> [options]
//	fileexport still  --out <file.pcx|file.png> [options]
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/atari800go/mediaexport/internal/codec"
	"github.com/atari800go/mediaexport/internal/screenadapter"
	"github.com/atari800go/mediaexport/pkg/export"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "record":
		err = runRecord(os.Args[2:])
	case "still":
		err = runStill(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `fileexport - synthetic-screen driver for the AVI/WAV/PCX/PNG export pipeline

Usage:
  fileexport record --out <file.avi|file.wav> [options]
  fileexport still  --out <file.pcx|file.png> [options]
  fileexport help

record options:
  --width, --height     frame size in pixels (default 160x100)
  --fps                 frames per second (default 59.92)
  --seconds             duration to synthesize (default 2)
  --audio               also synthesize a sine-wave stereo track (AVI only)
  --videocodec          mrle, deltablock, mpng, or auto (default auto)
  --keyframe-interval    milliseconds between forced keyframes (default 1000)
  --compression-level    0-9 codec compression level (default 6)
  --overlay-text         burn a frame-counter HUD into mpng frames

still options:
  --width, --height     frame size in pixels (default 320x200)
  --compression          0-9 PNG compression level, ignored for PCX`)
}

// testPattern is a synthetic Screen that paints diagonal stripes whose
// phase advances with frameOffset, giving codecs something to diff against.
type testPattern struct {
	width, height int
	frameOffset   int
}

func (t *testPattern) Stride() int { return t.width }

func (t *testPattern) At(x, y int) byte {
	return byte((x + y + t.frameOffset) % 256)
}

// grayPalette is a 256-entry identity grayscale palette.
type grayPalette struct{}

func (grayPalette) R(i byte) byte { return i }
func (grayPalette) G(i byte) byte { return i }
func (grayPalette) B(i byte) byte { return i }

func runRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	out := fs.String("out", "", "output file (.avi or .wav)")
	width := fs.Int("width", 160, "frame width")
	height := fs.Int("height", 100, "frame height")
	fps := fs.Float64("fps", 59.92, "frames per second")
	seconds := fs.Float64("seconds", 2, "duration in seconds")
	withAudio := fs.Bool("audio", false, "synthesize a stereo audio track (AVI only)")
	cfg := export.DefaultConfig()
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("--out is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(*out))
	geom := screenadapter.Geometry{Left: 0, Top: 0, Width: *width, Height: *height}
	numFrames := int(*seconds * *fps)

	switch ext {
	case ".avi":
		reg := builtinRegistry(cfg)
		var audio *export.AudioFormat
		if *withAudio {
			audio = &export.AudioFormat{Channels: 2, SampleRate: 44100, SampleWidth: 2}
		}
		sess, err := export.OpenAVI(*out, cfg, reg, geom, *fps, grayPalette{}, audio, nil)
		if err != nil {
			return err
		}
		phase := 0.0
		for i := 0; i < numFrames; i++ {
			w, h := *width, *height
			pat := &testPattern{width: w, height: h, frameOffset: i}
			frame := make([]byte, w*h)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					frame[y*w+x] = pat.At(x, y)
				}
			}
			if err := sess.AddVideoFrame(frame); err != nil {
				return err
			}
			if audio != nil {
				n := audio.SampleRate / int(*fps)
				samples := make([]byte, n*audio.Channels*audio.SampleWidth)
				phase = fillSineWave(samples, *audio, phase)
				if err := sess.AddAudioSamples(samples, n); err != nil {
					return err
				}
			}
		}
		return sess.Close()

	case ".wav":
		audio := export.AudioFormat{Channels: 2, SampleRate: 44100, SampleWidth: 2}
		sess, err := export.OpenWAV(*out, audio, *fps, nil)
		if err != nil {
			return err
		}
		phase := 0.0
		n := audio.SampleRate / int(*fps)
		samples := make([]byte, n*audio.Channels*audio.SampleWidth)
		for i := 0; i < numFrames; i++ {
			phase = fillSineWave(samples, audio, phase)
			if _, err := sess.WriteSamples(samples, n); err != nil {
				return err
			}
		}
		return sess.Close()

	default:
		return fmt.Errorf("unsupported --out extension %q: use .avi or .wav", ext)
	}
}

// fillSineWave writes a 440Hz tone into buf and returns the updated phase.
func fillSineWave(buf []byte, audio export.AudioFormat, phase float64) float64 {
	const freq = 440.0
	frameSize := audio.Channels * audio.SampleWidth
	step := 2 * math.Pi * freq / float64(audio.SampleRate)
	for i := 0; i*frameSize < len(buf); i++ {
		v := int16(math.Sin(phase) * 0.25 * 32767)
		for ch := 0; ch < audio.Channels; ch++ {
			off := i*frameSize + ch*audio.SampleWidth
			buf[off] = byte(v)
			buf[off+1] = byte(v >> 8)
		}
		phase += step
	}
	return phase
}

func builtinRegistry(cfg export.Config) *codec.Registry {
	return codec.NewRegistry("deltablock",
		codec.NewDeltaBlockDescriptor(cfg.CompressionLevel),
		codec.MRLEDescriptor,
		codec.NewMPNGDescriptor(cfg.CompressionLevel, cfg.OverlayText),
	)
}

func runStill(args []string) error {
	fs := flag.NewFlagSet("still", flag.ExitOnError)
	out := fs.String("out", "", "output file (.pcx or .png)")
	width := fs.Int("width", 320, "frame width")
	height := fs.Int("height", 200, "frame height")
	compression := fs.Int("compression", 6, "PNG compression level, 0-9")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("--out is required")
	}

	pat := &testPattern{width: *width, height: *height}
	adapter := screenadapter.New(pat, grayPalette{}, 0, 0, *width, *height)

	switch ext := strings.ToLower(filepath.Ext(*out)); ext {
	case ".pcx":
		return export.SavePCX(*out, adapter, pat, nil)
	case ".png":
		return export.SavePNG(*out, adapter, pat, nil, *compression)
	default:
		return fmt.Errorf("unsupported --out extension %q: use .pcx or .png", ext)
	}
}
