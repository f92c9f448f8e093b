package export

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/atari800go/mediaexport/internal/codec"
	"github.com/atari800go/mediaexport/internal/leio"
	"github.com/atari800go/mediaexport/internal/screenadapter"
)

// MaxRecordingSize is the RIFF-imposed ceiling on total bytes written,
// matching the original exporter's MAX_RECORDING_SIZE.
const MaxRecordingSize = 0xfff00000

const frameIndexAllocSize = 1000

// Packed per-frame index bit layout, mirroring VIDEO_BITMASK/AUDIO_BITSHIFT/
// AUDIO_BITMASK/KEYFRAME_BITMASK.
const (
	videoSizeMask  = 0x0003ffff
	audioSizeShift = 18
	audioSizeMask  = 0x1fff
	keyframeBit    = 1 << 31

	maxVideoChunkSize = 1 << 18 // 262144, exclusive ceiling per invariant "< 2^18"
	maxAudioChunkSize = 1 << 13 // 8192, exclusive ceiling per invariant "< 2^13"
)

// pendingState is the three-state FSM each pending stream (video, audio)
// occupies between frame flushes: idle (nothing staged), ready (a
// non-negative byte count staged), or poisoned (an unrecoverable codec or
// buffer failure occurred and the session can now only be closed).
type pendingState int32

const (
	pendingIdle    pendingState = -1
	pendingPoisoned pendingState = -2 // anything <= this is poisoned
)

func (p pendingState) isReady() bool    { return p >= 0 }
func (p pendingState) isPoisoned() bool { return p < pendingIdle }

// AVISession streams a RIFF/AVI container: header, interleaved 00dc/01wb
// chunks, and a trailing idx1 index, finalized by rewriting the header on
// Close. One session serves exactly one recording; it is not resumable.
type AVISession struct {
	f      *os.File
	logger *log.Logger

	cfg  Config
	desc codec.Descriptor
	cdc  codec.Codec

	geometry screenadapter.Geometry
	fps      float64
	paletteFn func(i byte) (r, g, b byte)

	hasAudio bool
	audio    AudioFormat

	videoBuf []byte
	audioBuf []byte

	pendingVideo pendingState
	pendingAudio pendingState
	currentKeyframe bool
	keyframeResidual float64

	framesWritten  uint32
	samplesWritten uint64
	byteswritten   int64

	totalVideoSize    int64
	smallestVideoSize int64
	largestVideoSize  int64

	sizeRiffPos int64 // offset of the RIFF payload-length field
	sizeMoviPos int64 // offset of the movi payload-length field
	moviStart   int64 // file position of the 'movi' FourCC (start of the movi LIST payload)

	index []uint32
}

// OpenAVI opens path for writing, selects and initializes a video codec from
// reg per cfg.VideoCodec, and writes the placeholder header. audio may be
// the zero value if the session is video-only.
func OpenAVI(path string, cfg Config, reg *codec.Registry, geom screenadapter.Geometry, fps float64, palette screenadapter.Palette, audio *AudioFormat, logger *log.Logger) (*AVISession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	desc, ok := reg.Select(cfg.VideoCodec)
	if !ok {
		return nil, newError(ConfigError, "OpenAVI", fmt.Errorf("unknown video codec %q", cfg.VideoCodec))
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, newError(IoError, "OpenAVI", err)
	}

	s := &AVISession{
		f:                 f,
		logger:            logger,
		cfg:               cfg,
		desc:              desc,
		geometry:          geom,
		fps:               fps,
		pendingVideo:      pendingIdle,
		pendingAudio:      pendingIdle,
		currentKeyframe:   true,
		smallestVideoSize: 0xffffffff,
	}

	if audio != nil {
		s.hasAudio = true
		s.audio = *audio
	}

	s.cdc = desc.New()
	maxBuf, err := s.cdc.Init(geom.Width, geom.Height, geom.Left, geom.Top)
	if err != nil || maxBuf < 0 {
		s.cdc.End()
		f.Close()
		if err == nil {
			err = fmt.Errorf("codec init returned negative buffer size")
		}
		return nil, newError(CodecInitError, "OpenAVI", err)
	}
	s.videoBuf = make([]byte, maxBuf)

	if palette != nil {
		s.SetPalette(palette)
	}

	if s.hasAudio {
		audioBufSize := int(float64(s.audio.SampleRate)*float64(s.audio.BytesPerSample())/fps) + 1024
		s.audioBuf = make([]byte, audioBufSize)
	}

	s.index = make([]uint32, 0, frameIndexAllocSize)

	if err := s.writeHeader(); err != nil {
		s.cdc.End()
		f.Close()
		return nil, err
	}

	pos, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		s.cdc.End()
		f.Close()
		return nil, newError(IoError, "OpenAVI", err)
	}
	s.byteswritten = pos + 8

	return s, nil
}

func (s *AVISession) numStreams() int {
	if s.hasAudio {
		return 2
	}
	return 1
}

// writeHeader seeks to the start of the file and lays down the RIFF/AVI
// header. Called once at open with placeholder sizes, and again at close
// once the final sizes are known.
func (s *AVISession) writeHeader() error {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return newError(IoError, "writeHeader", err)
	}

	w := leio.New(s.f)
	w.PutFourCC("RIFF")
	sizeRiffPos := s.currentPos(w)
	w.PutU32LE(0) // size_riff placeholder, patched at close
	w.PutFourCC("AVI ")

	w.PutFourCC("LIST")
	listSize := uint32(4 + 8 + 56 + (12 + (8 + 56 + 8 + 40 + 256*4 + 8 + 16)))
	if s.numStreams() == 2 {
		listSize += 12 + 8 + 56 + 8 + 18 + 8 + 12
	}
	w.PutU32LE(listSize)
	w.PutFourCC("hdrl")

	w.PutFourCC("avih")
	w.PutU32LE(56)
	w.PutU32LE(uint32(1000000 / s.fps))
	// Approximate bytes/second of video, independent of fps and audio,
	// preserved from the original; a correct figure would fold in fps and
	// the audio bitrate.
	w.PutU32LE(uint32(s.geometry.Width * s.geometry.Height * 3))
	w.PutU32LE(0)
	w.PutU32LE(0x10) // index present at end of file
	w.PutU32LE(s.framesWritten)
	w.PutU32LE(0)
	w.PutU32LE(uint32(s.numStreams()))
	w.PutU32LE(uint32(s.geometry.Width * s.geometry.Height * 3))
	w.PutU32LE(uint32(s.geometry.Width))
	w.PutU32LE(uint32(s.geometry.Height))
	w.PutU32LE(0)
	w.PutU32LE(0)
	w.PutU32LE(0)
	w.PutU32LE(0)

	w.PutFourCC("LIST")
	w.PutU32LE(4 + 8 + 56 + 8 + 40 + 256*4 + 8 + 16)
	w.PutFourCC("strl")

	w.PutFourCC("strh")
	w.PutU32LE(56)
	w.PutFourCC("vids")
	w.PutFourCC(s.desc.FourCC)
	w.PutU32LE(0)
	w.PutU16LE(0)
	w.PutU16LE(0)
	w.PutU32LE(0)
	w.PutU32LE(1000000)
	w.PutU32LE(uint32(s.fps * 1000000))
	w.PutU32LE(0)
	w.PutU32LE(s.framesWritten)
	w.PutU32LE(uint32(s.geometry.Width * s.geometry.Height * 3))
	w.PutU32LE(0)
	w.PutU32LE(0)
	w.PutU32LE(0)
	w.PutU32LE(0)

	w.PutFourCC("strf")
	w.PutU32LE(40 + 256*4)
	w.PutU32LE(40)
	w.PutU32LE(uint32(s.geometry.Width))
	w.PutU32LE(uint32(s.geometry.Height))
	w.PutU16LE(1)
	w.PutU16LE(8)
	w.PutFourCC(s.desc.AVICompression)
	w.PutU32LE(uint32(s.geometry.Width * s.geometry.Height * 3))
	w.PutU32LE(0)
	w.PutU32LE(0)
	w.PutU32LE(256)
	w.PutU32LE(0)

	for i := 0; i < 256; i++ {
		r, g, b := s.palette(byte(i))
		w.PutBytes([]byte{b, g, r, 0})
	}

	w.PutFourCC("strn")
	w.PutU32LE(16)
	w.PutBytes(padName("atari800 video", 16))

	if s.hasAudio {
		w.PutFourCC("LIST")
		w.PutU32LE(4 + 8 + 56 + 8 + 18 + 8 + 12)
		w.PutFourCC("strl")

		w.PutFourCC("strh")
		w.PutU32LE(56)
		w.PutFourCC("auds")
		w.PutU32LE(1) // format tag: 1 = uncompressed PCM
		w.PutU32LE(0)
		w.PutU16LE(0)
		w.PutU16LE(0)
		w.PutU32LE(0)
		w.PutU32LE(1)
		w.PutU32LE(uint32(s.audio.SampleRate))
		w.PutU32LE(0)
		w.PutU32LE(uint32(s.samplesWritten))
		w.PutU32LE(uint32(s.audio.SampleRate * s.audio.Channels * s.audio.SampleWidth))
		w.PutU32LE(0)
		w.PutU32LE(uint32(s.audio.Channels * s.audio.SampleWidth))
		w.PutU32LE(0)
		w.PutU32LE(0)

		w.PutFourCC("strf")
		w.PutU32LE(18)
		w.PutU16LE(1)
		w.PutU16LE(uint16(s.audio.Channels))
		w.PutU32LE(uint32(s.audio.SampleRate))
		w.PutU32LE(uint32(s.audio.SampleRate * s.audio.Channels * s.audio.SampleWidth))
		w.PutU16LE(uint16(s.audio.Channels * s.audio.SampleWidth))
		w.PutU16LE(uint16(s.audio.SampleWidth * 8))
		w.PutU16LE(0)

		w.PutFourCC("strn")
		w.PutU32LE(12)
		w.PutBytes(padName("POKEY audio", 12))
	}

	w.PutFourCC("LIST")
	sizeMoviPos := s.currentPos(w)
	w.PutU32LE(0) // size_movi placeholder, patched at close
	moviStart := s.currentPos(w)
	w.PutFourCC("movi")

	if w.Err != nil {
		return newError(IoError, "writeHeader", w.Err)
	}

	s.sizeRiffPos = sizeRiffPos
	s.sizeMoviPos = sizeMoviPos
	s.moviStart = moviStart
	return nil
}

func (s *AVISession) currentPos(w *leio.Writer) int64 {
	pos, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil && w.Err == nil {
		w.Err = err
	}
	return pos
}

// palettedCodec is implemented by codecs (e.g. mpng) that need live palette
// data beyond what the Codec.Init geometry arguments carry.
type palettedCodec interface {
	SetPalette(screenadapter.Palette)
}

// SetPalette supplies the 256-entry R/G/B lookup used in the strf palette
// block, and forwards it to the selected codec when the codec itself needs
// live palette data (e.g. mpng, which paints indexed PNG frames). OpenAVI
// calls this automatically when given a non-nil palette; a session opened
// with a nil palette falls back to a grayscale ramp for both.
func (s *AVISession) SetPalette(p screenadapter.Palette) {
	s.paletteFn = func(i byte) (r, g, b byte) { return p.R(i), p.G(i), p.B(i) }
	if pc, ok := s.cdc.(palettedCodec); ok {
		pc.SetPalette(p)
	}
}

func (s *AVISession) palette(i byte) (r, g, b byte) {
	if s.paletteFn != nil {
		return s.paletteFn(i)
	}
	return i, i, i
}

// padName returns name as a fixed-size, null-terminated, zero-padded byte
// slice of exactly size bytes (the AVI strn convention).
func padName(name string, size int) []byte {
	b := make([]byte, size)
	n := copy(b, name)
	if n < size {
		b[n] = 0
	}
	return b
}

// AddVideoFrame flushes any fully-formed pending frame, then asks the
// selected codec to encode the current screen into the scratch video
// buffer with want_keyframe equal to the current keyframe flag. The
// sentinel is checked before the codec is ever invoked, fixing the
// original's call-then-check ordering.
func (s *AVISession) AddVideoFrame(source []byte) error {
	if s.pendingVideo.isPoisoned() || s.pendingAudio.isPoisoned() {
		return newError(CodecEncodeError, "AddVideoFrame", fmt.Errorf("session already poisoned"))
	}

	if s.pendingVideo.isReady() {
		if !s.hasAudio || s.pendingAudio.isReady() {
			if err := s.writeFrame(); err != nil {
				return err
			}
		} else {
			return newError(OutOfPhaseError, "AddVideoFrame", fmt.Errorf("video frame pending without audio data"))
		}
	}

	n, err := s.cdc.Frame(source, s.currentKeyframe, s.videoBuf)
	if err != nil || n < 0 {
		s.pendingVideo = pendingPoisoned
		if err == nil {
			err = fmt.Errorf("codec returned negative size")
		}
		return newError(CodecEncodeError, "AddVideoFrame", err)
	}
	if n >= maxVideoChunkSize {
		s.pendingVideo = pendingPoisoned
		return newError(BufferTooSmallError, "AddVideoFrame", fmt.Errorf("encoded frame size %d exceeds %d-byte ceiling", n, maxVideoChunkSize))
	}
	s.pendingVideo = pendingState(n)
	return nil
}

// AddAudioSamples is symmetric to AddVideoFrame: flushes a pending frame
// when both streams are ready, copies n*channels*sample_width bytes (n
// counts sample frames) into the audio scratch buffer, and stages the
// pending audio size.
func (s *AVISession) AddAudioSamples(buf []byte, n int) error {
	if !s.hasAudio {
		return newError(ConfigError, "AddAudioSamples", fmt.Errorf("session has no audio stream"))
	}
	if s.pendingVideo.isPoisoned() || s.pendingAudio.isPoisoned() {
		return newError(CodecEncodeError, "AddAudioSamples", fmt.Errorf("session already poisoned"))
	}

	if s.pendingAudio.isReady() {
		if s.pendingVideo.isReady() {
			if err := s.writeFrame(); err != nil {
				return err
			}
		} else {
			return newError(OutOfPhaseError, "AddAudioSamples", fmt.Errorf("audio data pending without video frame"))
		}
	}

	size := n * s.audio.BytesPerSample()
	if size > len(s.audioBuf) {
		s.pendingAudio = pendingPoisoned
		return newError(BufferTooSmallError, "AddAudioSamples", fmt.Errorf("audio scratch buffer too small for %d samples", n))
	}
	if size >= maxAudioChunkSize {
		s.pendingAudio = pendingPoisoned
		return newError(BufferTooSmallError, "AddAudioSamples", fmt.Errorf("audio chunk size %d exceeds %d-byte ceiling", size, maxAudioChunkSize))
	}
	copy(s.audioBuf, buf[:size])
	s.pendingAudio = pendingState(n)
	return nil
}

// writeFrame implements the frame-flush algorithm: emit 00dc (+01wb if
// audio is active), pack the index entry, update running statistics and
// the keyframe cadence residual, and reset both pending sentinels.
func (s *AVISession) writeFrame() error {
	start, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return newError(IoError, "writeFrame", err)
	}

	videoSize := int(s.pendingVideo)
	w := leio.New(s.f)
	w.PutFourCC("00dc")
	w.PutU32LE(uint32(videoSize))
	w.PutBytes(s.videoBuf[:videoSize])
	if videoSize%2 != 0 {
		w.PutBytes([]byte{0})
	}
	expected := int64(8 + videoSize + videoSize%2)

	audioSize := 0
	if s.hasAudio {
		audioSize = int(s.pendingAudio) * s.audio.BytesPerSample()
		w.PutFourCC("01wb")
		w.PutU32LE(uint32(audioSize))
		if _, err := leio.PutBytesLE(s.f, s.audio.SampleWidth, int(s.pendingAudio)*s.audio.Channels, s.audioBuf[:audioSize]); err != nil && w.Err == nil {
			w.Err = err
		}
		if audioSize%2 != 0 {
			w.PutBytes([]byte{0})
		}
		s.samplesWritten += uint64(s.pendingAudio)
		expected += int64(8 + audioSize + audioSize%2)
	}

	if w.Err != nil {
		return newError(IoError, "writeFrame", w.Err)
	}

	packed := uint32(videoSize) | uint32(audioSize)<<audioSizeShift
	if s.currentKeyframe {
		packed |= keyframeBit
	}
	s.index = append(s.index, packed)

	end, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return newError(IoError, "writeFrame", err)
	}
	actual := end - start
	if actual != expected {
		return newError(IoError, "writeFrame", fmt.Errorf("wrote %d bytes, expected %d", actual, expected))
	}

	// The per-frame index entry costs 16 bytes (video-only) or 32 bytes
	// (video+audio); the constant 32 is charged unconditionally, a
	// conservative overestimate preserved from the original to keep the
	// size-limit gate at least as strict as the real output.
	s.byteswritten += actual + 32

	s.totalVideoSize += int64(videoSize)
	if int64(videoSize) < s.smallestVideoSize {
		s.smallestVideoSize = int64(videoSize)
	}
	if int64(videoSize) > s.largestVideoSize {
		s.largestVideoSize = int64(videoSize)
	}

	if s.desc.UsesInterframes {
		s.keyframeResidual += 1000.0 / s.fps
		interval := float64(s.cfg.KeyframeInterval)
		if s.keyframeResidual > interval {
			s.currentKeyframe = true
			s.keyframeResidual -= float64(int(s.keyframeResidual/interval)) * interval
		} else {
			s.currentKeyframe = false
		}
	} else {
		s.currentKeyframe = true
	}

	s.framesWritten++
	s.pendingVideo = pendingIdle
	s.pendingAudio = pendingIdle

	if s.byteswritten > MaxRecordingSize {
		return newError(SizeLimitReached, "writeFrame", nil)
	}
	return nil
}

// Close flushes a final pending frame if both sentinels hold valid sizes,
// writes the idx1 index, rewrites the header with final sizes, and
// releases the codec and the file handle. Close must run exactly once.
func (s *AVISession) Close() error {
	defer s.cdc.End()
	defer s.f.Close()

	if s.pendingVideo.isReady() && (!s.hasAudio || s.pendingAudio.isReady()) {
		if err := s.writeFrame(); err != nil {
			if kind, ok := errKind(err); !ok || kind != SizeLimitReached {
				return err
			}
		}
	}

	if s.framesWritten > 0 {
		seconds := int64(float64(s.framesWritten) / s.fps)
		avg := float64(s.totalVideoSize) / float64(s.framesWritten) / 1024.0
		s.logger.Printf("AVI stats: %d:%02d:%02d, %dMB, %d frames; video codec avg frame size %.1fkB, min=%.1fkB, max=%.1fkB",
			seconds/3600, (seconds/60)%60, seconds%60,
			s.byteswritten/1024/1024, s.framesWritten,
			avg, float64(s.smallestVideoSize)/1024.0, float64(s.largestVideoSize)/1024.0)
	}

	moviEnd, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return newError(IoError, "Close", err)
	}
	moviSize := uint32(moviEnd - s.moviStart)

	if err := s.writeIndex(); err != nil {
		return err
	}

	riffEnd, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return newError(IoError, "Close", err)
	}
	riffSize := uint32(riffEnd - 8)

	if err := s.writeHeader(); err != nil {
		return err
	}
	if err := s.patchU32(s.sizeMoviPos, moviSize); err != nil {
		return err
	}
	if err := s.patchU32(s.sizeRiffPos, riffSize); err != nil {
		return err
	}

	return nil
}

func (s *AVISession) patchU32(pos int64, v uint32) error {
	if _, err := s.f.Seek(pos, io.SeekStart); err != nil {
		return newError(IoError, "patchU32", err)
	}
	w := leio.New(s.f)
	w.PutU32LE(v)
	if w.Err != nil {
		return newError(IoError, "patchU32", w.Err)
	}
	return nil
}

// writeIndex emits the idx1 chunk: one (or two, with audio) entries per
// recorded frame, offsets relative to the start of the movi payload.
func (s *AVISession) writeIndex() error {
	if s.framesWritten == 0 {
		return nil
	}

	entrySize := uint32(16)
	if s.hasAudio {
		entrySize = 32
	}
	indexSize := s.framesWritten * entrySize

	w := leio.New(s.f)
	w.PutFourCC("idx1")
	w.PutU32LE(indexSize)

	var offset uint32 = 4
	for _, packed := range s.index {
		videoSize := packed & videoSizeMask
		isKeyframe := uint32(0)
		if packed&keyframeBit != 0 {
			isKeyframe = 0x10
		}

		w.PutFourCC("00dc")
		w.PutU32LE(isKeyframe)
		w.PutU32LE(offset)
		w.PutU32LE(videoSize)
		offset += videoSize + 8 + videoSize%2

		if s.hasAudio {
			audioSize := (packed >> audioSizeShift) & audioSizeMask
			w.PutFourCC("01wb")
			w.PutU32LE(0x10)
			w.PutU32LE(offset)
			w.PutU32LE(audioSize)
			offset += audioSize + 8 + audioSize%2
		}
	}

	if w.Err != nil {
		return newError(IoError, "writeIndex", w.Err)
	}
	return nil
}

// ElapsedSeconds reports frames_written/fps, matching the original's
// elapsed_time status getter.
func (s *AVISession) ElapsedSeconds() float64 { return float64(s.framesWritten) / s.fps }

// CurrentSize reports the approximate running byte total.
func (s *AVISession) CurrentSize() int64 { return s.byteswritten }

// Description reports a short "AVI <codec_id>" label.
func (s *AVISession) Description() string { return "AVI " + s.desc.ID }

func errKind(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
