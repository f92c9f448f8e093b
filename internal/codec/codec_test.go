package codec

import "testing"

func TestRegistrySelectAuto(t *testing.T) {
	reg := NewRegistry("deltablock", MRLEDescriptor, NewDeltaBlockDescriptor(6))
	d, ok := reg.Select("auto")
	if !ok || d.ID != "deltablock" {
		t.Fatalf("auto selected %+v, ok=%v; want deltablock", d, ok)
	}
}

func TestRegistrySelectAutoFallsBackWhenPreferredMissing(t *testing.T) {
	reg := NewRegistry("deltablock", MRLEDescriptor)
	d, ok := reg.Select("auto")
	if !ok || d.ID != "mrle" {
		t.Fatalf("auto selected %+v, ok=%v; want mrle", d, ok)
	}
}

func TestRegistrySelectExplicitCaseInsensitive(t *testing.T) {
	reg := NewRegistry("deltablock", MRLEDescriptor, NewDeltaBlockDescriptor(6))
	d, ok := reg.Select("MRLE")
	if !ok || d.ID != "mrle" {
		t.Fatalf("select MRLE = %+v, ok=%v", d, ok)
	}
}

func TestRegistrySelectUnknownFails(t *testing.T) {
	reg := NewRegistry("deltablock", MRLEDescriptor)
	_, ok := reg.Select("nonexistent")
	if ok {
		t.Fatal("expected selection of unknown codec id to fail")
	}
}

func TestMRLEKeyframeCompressesFlatScreen(t *testing.T) {
	c := MRLEDescriptor.New()
	defer c.End()

	const w, h = 8, 4
	maxSize, err := c.Init(w, h, 0, 0)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	source := make([]byte, w*h)
	for i := range source {
		source[i] = 7 // flat screen, should RLE to tiny runs
	}
	dest := make([]byte, maxSize)
	n, err := c.Frame(source, true, dest)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if n == 0 {
		t.Fatal("expected non-zero encoded size")
	}
	if n >= len(source) {
		t.Fatalf("flat screen should compress well: encoded %d bytes from %d source bytes", n, len(source))
	}
}

func TestMRLEInterframeOfIdenticalFrameIsSmall(t *testing.T) {
	c := MRLEDescriptor.New()
	defer c.End()

	const w, h = 16, 16
	maxSize, err := c.Init(w, h, 0, 0)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	source := make([]byte, w*h)
	for i := range source {
		source[i] = byte(i % 5)
	}
	dest := make([]byte, maxSize)
	if _, err := c.Frame(source, true, dest); err != nil {
		t.Fatalf("keyframe: %v", err)
	}
	// Same frame again as an inter-frame: the XOR delta is all zero, which
	// should RLE to a handful of run bytes regardless of frame content.
	n, err := c.Frame(source, false, dest)
	if err != nil {
		t.Fatalf("interframe: %v", err)
	}
	if n > h*4 {
		t.Fatalf("unchanged inter-frame encoded to %d bytes, expected near-minimal", n)
	}
}

func TestDeltaBlockKeyframeAndInterframe(t *testing.T) {
	d := NewDeltaBlockDescriptor(6)
	c := d.New()
	defer c.End()

	const w, h = 32, 32
	maxSize, err := c.Init(w, h, 0, 0)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	source := make([]byte, w*h)
	dest := make([]byte, maxSize)

	if _, err := c.Frame(source, true, dest); err != nil {
		t.Fatalf("keyframe: %v", err)
	}
	n, err := c.Frame(source, false, dest)
	if err != nil {
		t.Fatalf("interframe: %v", err)
	}
	if n == 0 {
		t.Fatal("expected non-zero compressed size even for an all-zero delta")
	}
}

func TestMPNGAlwaysReportsKeyframeSemantics(t *testing.T) {
	d := NewMPNGDescriptor(6, false)
	if d.UsesInterframes {
		t.Fatal("mpng must never advertise UsesInterframes")
	}
	c := d.New().(*mpngCodec)
	defer c.End()

	const w, h = 4, 4
	maxSize, err := c.Init(w, h, 0, 0)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	source := make([]byte, w*h)
	dest := make([]byte, maxSize)
	n, err := c.Frame(source, true, dest)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if n == 0 {
		t.Fatal("expected non-zero PNG output")
	}
	// PNG signature.
	if dest[0] != 0x89 || dest[1] != 'P' || dest[2] != 'N' || dest[3] != 'G' {
		t.Fatalf("output does not start with PNG signature: % x", dest[:4])
	}
}
