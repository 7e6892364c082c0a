package audio

import (
	"time"

	"github.com/google/uuid"

	"github.com/talkflow/talkflow/internal/vad"
)

// AssemblerState represents the current state of segment assembly
type AssemblerState int

const (
	// StateIdle means no speech has been detected; incoming frames are discarded.
	StateIdle AssemblerState = iota
	// StateAccumulating means an utterance is in progress and every frame is buffered.
	StateAccumulating
	// StateTrailing means silence has started; frames are still buffered until
	// the silence run reaches the configured minimum.
	StateTrailing
)

// Segment is a bounded span of audio containing one detected utterance,
// handed to recognition as a single unit. Samples are owned by the receiver
// from the moment the assembler emits it.
type Segment struct {
	ID        string
	Seq       uint64
	Samples   []float32
	StartTime time.Time
	EndTime   time.Time
	Padded    bool // trailing speech padding retained
	Forced    bool // emitted by hard cap or flush rather than silence
}

// Duration returns the segment length as audio time at the given sample rate.
func (s *Segment) Duration(sampleRate int) time.Duration {
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(sampleRate)
}

// AssemblerConfig contains segment assembly parameters, all expressed in
// frames. Use NewAssemblerConfig to derive it from millisecond durations.
type AssemblerConfig struct {
	SampleRate        int
	FrameSize         int
	MinSpeechFrames   int
	MinSilenceFrames  int
	PadFrames         int
	MaxSegmentFrames  int
	Passthrough       bool
	PassthroughFrames int
}

// NewAssemblerConfig converts millisecond durations into frame counts for the
// given sample rate. Every count is at least one frame.
func NewAssemblerConfig(sampleRate, frameSize int, minSpeech, minSilence, pad, maxSegment, chunk time.Duration, passthrough bool) AssemblerConfig {
	frameDur := time.Duration(frameSize) * time.Second / time.Duration(sampleRate)

	toFrames := func(d time.Duration) int {
		n := int(d / frameDur)
		if n < 1 {
			n = 1
		}
		return n
	}

	cfg := AssemblerConfig{
		SampleRate:        sampleRate,
		FrameSize:         frameSize,
		MinSpeechFrames:   toFrames(minSpeech),
		MinSilenceFrames:  toFrames(minSilence),
		MaxSegmentFrames:  toFrames(maxSegment),
		PassthroughFrames: toFrames(chunk),
		Passthrough:       passthrough,
	}

	// Padding may legitimately round to zero frames.
	cfg.PadFrames = int(pad / frameDur)
	if cfg.PadFrames >= cfg.MinSilenceFrames {
		cfg.PadFrames = cfg.MinSilenceFrames - 1
	}

	return cfg
}

// Assembler consumes frame-level speech decisions and assembles contiguous
// speech into bounded segments. In passthrough mode it instead emits a segment
// every fixed interval of audio, ignoring decisions.
//
// An Assembler is not safe for concurrent use; each session owns its own.
type Assembler struct {
	cfg AssemblerConfig

	state        AssemblerState
	frames       [][]float32
	speechFrames int
	silenceRun   int
	startTime    time.Time
	seq          uint64
}

// NewAssembler creates a segment assembler.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	return &Assembler{cfg: cfg}
}

// State returns the current assembly state.
func (a *Assembler) State() AssemblerState {
	return a.state
}

// SetPassthrough switches between VAD-driven and interval-driven segmentation.
// Any in-progress segment is discarded; callers flush first if they need it.
func (a *Assembler) SetPassthrough(enabled bool) {
	a.cfg.Passthrough = enabled
	a.reset()
}

// Process consumes one frame and its speech decision. It returns a completed
// segment when one becomes available, nil otherwise.
func (a *Assembler) Process(d vad.Decision, frame []float32) *Segment {
	if a.cfg.Passthrough {
		return a.processPassthrough(frame)
	}

	switch a.state {
	case StateIdle:
		if d.IsSpeech {
			a.startTime = time.Now()
			a.frames = append(a.frames[:0], frame)
			a.speechFrames = 1
			a.silenceRun = 0
			a.state = StateAccumulating
		}

	case StateAccumulating:
		a.frames = append(a.frames, frame)
		if d.IsSpeech {
			a.speechFrames++
		} else {
			a.silenceRun = 1
			a.state = StateTrailing
		}

	case StateTrailing:
		a.frames = append(a.frames, frame)
		if d.IsSpeech {
			// Short pause absorbed; the segment continues.
			a.speechFrames++
			a.silenceRun = 0
			a.state = StateAccumulating
		} else {
			a.silenceRun++
			if a.silenceRun >= a.cfg.MinSilenceFrames {
				return a.emit(false)
			}
		}
	}

	// Hard cap: force the emit and carry on accumulating so continuous
	// speech cannot buffer without bound.
	if a.state != StateIdle && len(a.frames) >= a.cfg.MaxSegmentFrames {
		return a.emitCapped()
	}

	return nil
}

// Flush force-finalizes any in-progress segment, used on session stop. A
// segment with less accumulated speech than the configured minimum is
// discarded rather than emitted.
func (a *Assembler) Flush() *Segment {
	if a.cfg.Passthrough {
		if len(a.frames) == 0 {
			return nil
		}
		seg := a.build(false, true)
		a.reset()
		return seg
	}

	if a.state == StateIdle {
		return nil
	}

	if a.speechFrames < a.cfg.MinSpeechFrames {
		a.reset()
		return nil
	}

	return a.emit(true)
}

// Reset discards all in-progress state.
func (a *Assembler) Reset() {
	a.reset()
}

func (a *Assembler) processPassthrough(frame []float32) *Segment {
	if len(a.frames) == 0 {
		a.startTime = time.Now()
	}
	a.frames = append(a.frames, frame)

	if len(a.frames) >= a.cfg.PassthroughFrames {
		seg := a.build(false, false)
		a.reset()
		return seg
	}

	return nil
}

// emit finalizes the current segment: the trailing silence run is trimmed
// down to the configured speech pad, and segments that never reached the
// minimum speech duration are dropped as noise blips.
func (a *Assembler) emit(forced bool) *Segment {
	if a.speechFrames < a.cfg.MinSpeechFrames {
		a.reset()
		return nil
	}

	drop := a.silenceRun - a.cfg.PadFrames
	if drop > 0 && drop < len(a.frames) {
		a.frames = a.frames[:len(a.frames)-drop]
	}

	seg := a.build(a.cfg.PadFrames > 0 && a.silenceRun > 0, forced)
	a.reset()
	return seg
}

// emitCapped emits everything buffered so far and continues with an empty
// buffer, so an unbroken utterance splits with no sample loss. State,
// silenceRun and the speech count all carry over: the continuation belongs to
// an utterance that already cleared the speech minimum, so a short remainder
// must not later be discarded as a blip.
func (a *Assembler) emitCapped() *Segment {
	seg := a.build(false, true)

	a.frames = nil
	a.startTime = time.Now()

	return seg
}

func (a *Assembler) build(padded, forced bool) *Segment {
	samples := make([]float32, 0, len(a.frames)*a.cfg.FrameSize)
	for _, f := range a.frames {
		samples = append(samples, f...)
	}

	a.seq++
	return &Segment{
		ID:        uuid.NewString(),
		Seq:       a.seq,
		Samples:   samples,
		StartTime: a.startTime,
		EndTime:   time.Now(),
		Padded:    padded,
		Forced:    forced,
	}
}

func (a *Assembler) reset() {
	a.state = StateIdle
	a.frames = nil
	a.speechFrames = 0
	a.silenceRun = 0
	a.startTime = time.Time{}
}
