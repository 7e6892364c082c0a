package vad

import (
	"fmt"
)

// Decision is the per-frame classification result.
type Decision struct {
	FrameIndex  uint64
	IsSpeech    bool
	Probability float32
}

// Detector classifies single audio frames as speech or non-speech. Decide is
// synchronous and must not block; it is called on the audio intake path.
//
// Implementations are not required to be safe for concurrent use; each
// session gets its own detector instance.
type Detector interface {
	// Decide classifies one frame. The frame must have exactly the length
	// the detector was configured for; anything else returns
	// InvalidFrameSizeError.
	Decide(frame []float32) (Decision, error)

	// Reset clears accumulated detection state (smoothing history, frame
	// counters) when a session is cleared or reconfigured.
	Reset()
}

// InvalidFrameSizeError reports a frame whose length does not match the
// detector's configured frame size. Given the framer's exactness guarantee
// this should never occur outside of wiring mistakes.
type InvalidFrameSizeError struct {
	Got  int
	Want int
}

func (e *InvalidFrameSizeError) Error() string {
	return fmt.Sprintf("invalid VAD frame size: got %d samples, want %d", e.Got, e.Want)
}
