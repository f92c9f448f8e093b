package export

import (
	"strings"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestConfigValidateRejectsOutOfRangeCompressionLevel(t *testing.T) {
	c := DefaultConfig()
	c.CompressionLevel = 10
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for compression-level 10")
	}
}

func TestConfigValidateRejectsZeroKeyframeInterval(t *testing.T) {
	c := DefaultConfig()
	c.KeyframeInterval = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for keyframe-interval 0")
	}
}

func TestReadConfigOverlaysRecognizedKeys(t *testing.T) {
	c := DefaultConfig()
	input := "VIDEO_CODEC=mrle\nVIDEO_CODEC_KEYFRAME_INTERVAL=500\nCOMPRESSION_LEVEL=9\n# a comment\n\nIGNORED_KEY=1\n"
	if err := ReadConfig(strings.NewReader(input), &c); err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if c.VideoCodec != "mrle" || c.KeyframeInterval != 500 || c.CompressionLevel != 9 {
		t.Fatalf("unexpected config after read: %+v", c)
	}
}

func TestWriteConfigRoundTrip(t *testing.T) {
	c := Config{VideoCodec: "deltablock", KeyframeInterval: 250, CompressionLevel: 3}
	var sb strings.Builder
	if err := WriteConfig(&sb, c); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	var readBack Config
	if err := ReadConfig(strings.NewReader(sb.String()), &readBack); err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if readBack.VideoCodec != c.VideoCodec || readBack.KeyframeInterval != c.KeyframeInterval || readBack.CompressionLevel != c.CompressionLevel {
		t.Fatalf("round trip mismatch: wrote %+v, read %+v", c, readBack)
	}
}
