// Package codec defines the video codec plug-in contract used by the AVI
// writer and provides the built-in codec registry and selection policy.
package codec

import "strings"

// Codec is the capability set every video codec implementation satisfies.
// A session calls Init exactly once, then Frame any number of times, then End
// exactly once, regardless of which step failed — mirroring the original's
// VIDEO_CODEC_t function-pointer table.
type Codec interface {
	// Init prepares the codec for width x height frames cropped at
	// (left, top) and returns the maximum size a single compressed frame
	// can occupy, or an error.
	Init(width, height, left, top int) (maxBufferSize int, err error)

	// Frame compresses source into dest (a reusable scratch buffer of
	// capacity dest cap) and returns the number of bytes written. When
	// wantKeyframe is false the codec may (but need not) emit an
	// inter-frame delta from the previously encoded frame.
	Frame(source []byte, wantKeyframe bool, dest []byte) (n int, err error)

	// End releases any resources allocated in Init. Called exactly once.
	End() error
}

// Descriptor is the immutable metadata every codec registers alongside its
// Codec implementation.
type Descriptor struct {
	// ID is the short identifier matched case-insensitively against the
	// videocodec configuration option (e.g. "mrle").
	ID string
	// Description is a human-readable summary.
	Description string
	// FourCC is the 4-byte tag written into the AVI stream header (strh).
	FourCC string
	// AVICompression is the 4-byte compression tag written into the
	// bitmap info header (strf biCompression). May differ from FourCC
	// (e.g. "MRLE" vs "mrle").
	AVICompression string
	// UsesInterframes is false when every frame the codec produces is a
	// self-contained keyframe (e.g. per-frame PNG).
	UsesInterframes bool
	// New constructs a fresh Codec instance for one recording session.
	New func() Codec
}

// Registry is a fixed ordered list of built-in codecs, analogous to the
// original's known_video_codecs array.
type Registry struct {
	descriptors []Descriptor
	// preferredAutoID names the codec "auto" picks when it is registered
	// (the delta-block codec in the built-in registry, whose dependency is
	// part of this module and therefore always available).
	preferredAutoID string
}

// NewRegistry builds a registry from the given descriptors in registration
// order. preferredAutoID names the codec "auto" should pick when present;
// if empty or not found, auto falls back to the first registered codec.
func NewRegistry(preferredAutoID string, descriptors ...Descriptor) *Registry {
	return &Registry{descriptors: descriptors, preferredAutoID: preferredAutoID}
}

// All returns the registered descriptors in registration order.
func (r *Registry) All() []Descriptor {
	return r.descriptors
}

// Match finds a codec by case-insensitive id.
func (r *Registry) Match(id string) (Descriptor, bool) {
	for _, d := range r.descriptors {
		if strings.EqualFold(d.ID, id) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Select implements the selection policy from spec.md §4.E: an explicit,
// non-"auto" id must match a registered codec (case-insensitive) or
// selection fails; "auto" picks the registry's preferred codec when
// registered, else the first registered codec. The per-frame PNG codec is
// never the auto default — registries must not name it preferredAutoID.
func (r *Registry) Select(requestedID string) (Descriptor, bool) {
	if strings.EqualFold(requestedID, "") || strings.EqualFold(requestedID, "auto") {
		if r.preferredAutoID != "" {
			if d, ok := r.Match(r.preferredAutoID); ok {
				return d, true
			}
		}
		if len(r.descriptors) == 0 {
			return Descriptor{}, false
		}
		return r.descriptors[0], true
	}
	return r.Match(requestedID)
}
