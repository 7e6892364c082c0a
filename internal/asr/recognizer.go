package asr

import (
	"context"
	"time"
)

// Request carries one speech segment to be recognized.
type Request struct {
	SegmentID  string
	Samples    []float32
	SampleRate int
	Language   string
	Model      string
}

// Partial is one recognition hypothesis for a segment. A request produces
// zero or more non-final partials followed by exactly one entry with Final
// set, after which the channel is closed. A failed recognition is reported
// as a terminal entry with Err set.
type Partial struct {
	SegmentID string
	Text      string
	Final     bool
	EmittedAt time.Time
	Err       error
}

// Recognizer transcribes speech segments. Recognize returns immediately with
// a channel of hypotheses; the channel is closed after the final (or error)
// entry, or when ctx is cancelled. Implementations that cannot stream emit a
// single final entry.
//
// A Recognizer is shared across sessions; implementations must be safe for
// concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, req Request) (<-chan Partial, error)
}
