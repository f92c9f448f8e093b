package export

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Config holds the process-wide-in-the-original, instance-scoped-here
// recording options. Threading it through session constructors (rather than
// a package global) lets independent sessions pick different codecs or
// compression levels safely.
type Config struct {
	VideoCodec       string // "auto" or an explicit codec id
	KeyframeInterval int    // milliseconds, >= 1
	CompressionLevel int    // 0-9
	OverlayText      bool   // burn a debug HUD onto PNG-based output
}

// DefaultConfig returns the option defaults from the configuration surface.
func DefaultConfig() Config {
	return Config{
		VideoCodec:       "auto",
		KeyframeInterval: 1000,
		CompressionLevel: 6,
		OverlayText:      false,
	}
}

// Validate checks the numeric ranges the configuration surface requires,
// returning a ConfigError wrapping the first violation found.
func (c Config) Validate() error {
	if c.KeyframeInterval < 1 {
		return newError(ConfigError, "Config.Validate", fmt.Errorf("keyframe-interval must be >= 1, got %d", c.KeyframeInterval))
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return newError(ConfigError, "Config.Validate", fmt.Errorf("compression-level must be 0-9, got %d", c.CompressionLevel))
	}
	return nil
}

// RegisterFlags wires the recognized CLI surface onto fs, mirroring the
// teacher's flag.FlagSet-per-subcommand style.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.VideoCodec, "videocodec", c.VideoCodec, "video codec: auto, mrle, deltablock, or mpng")
	fs.IntVar(&c.KeyframeInterval, "keyframe-interval", c.KeyframeInterval, "target keyframe cadence in milliseconds")
	fs.IntVar(&c.CompressionLevel, "compression-level", c.CompressionLevel, "PNG/delta-block compression level, 0-9")
	fs.BoolVar(&c.OverlayText, "overlay-text", c.OverlayText, "burn a debug HUD onto PNG-based output")
}

// Config-file keys recognized by ReadConfig/WriteConfig.
const (
	configKeyVideoCodec       = "VIDEO_CODEC"
	configKeyKeyframeInterval = "VIDEO_CODEC_KEYFRAME_INTERVAL"
	configKeyCompressionLevel = "COMPRESSION_LEVEL"
)

// ReadConfig parses "KEY=value" lines (blank lines and "#"-prefixed comments
// ignored) and overlays recognized keys onto c. Unrecognized keys are
// skipped rather than rejected, matching a forgiving config-file reader.
func ReadConfig(r io.Reader, c *Config) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case configKeyVideoCodec:
			c.VideoCodec = value
		case configKeyKeyframeInterval:
			n, err := strconv.Atoi(value)
			if err != nil {
				return newError(ConfigError, "ReadConfig", fmt.Errorf("%s: %w", configKeyKeyframeInterval, err))
			}
			c.KeyframeInterval = n
		case configKeyCompressionLevel:
			n, err := strconv.Atoi(value)
			if err != nil {
				return newError(ConfigError, "ReadConfig", fmt.Errorf("%s: %w", configKeyCompressionLevel, err))
			}
			c.CompressionLevel = n
		}
	}
	return scanner.Err()
}

// WriteConfig emits the current values of the recognized keys, one per line.
func WriteConfig(w io.Writer, c Config) error {
	_, err := fmt.Fprintf(w, "%s=%s\n%s=%d\n%s=%d\n",
		configKeyVideoCodec, c.VideoCodec,
		configKeyKeyframeInterval, c.KeyframeInterval,
		configKeyCompressionLevel, c.CompressionLevel,
	)
	return err
}

// AudioFormat describes the PCM stream a recording session mixes in. Fixed
// for the session's lifetime.
type AudioFormat struct {
	Channels    int // 1 or 2
	SampleRate  int
	SampleWidth int // 1 or 2 bytes
}

// BytesPerSample reports the per-frame PCM byte width across all channels.
func (f AudioFormat) BytesPerSample() int { return f.Channels * f.SampleWidth }
