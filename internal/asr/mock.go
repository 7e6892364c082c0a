package asr

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockRecognizer fabricates progressive hypotheses so the stabilizer and
// downstream stages can be exercised without a model. Each request yields a
// growing word-by-word partial sequence followed by a final transcript whose
// text depends only on the segment length.
type MockRecognizer struct {
	// Delay between emitted partials; zero means emit back to back.
	Delay time.Duration

	// Transcript overrides the fabricated text when set.
	Transcript string
}

// Recognize emits fabricated partials for the segment.
func (m *MockRecognizer) Recognize(ctx context.Context, req Request) (<-chan Partial, error) {
	if len(req.Samples) == 0 {
		return nil, fmt.Errorf("cannot recognize empty segment %s", req.SegmentID)
	}

	text := m.Transcript
	if text == "" {
		seconds := float64(len(req.Samples)) / float64(req.SampleRate)
		text = fmt.Sprintf("mock transcript of %.1f seconds of audio.", seconds)
	}

	words := strings.Fields(text)
	out := make(chan Partial, len(words)+1)

	go func() {
		defer close(out)

		for i := 1; i < len(words); i++ {
			if m.Delay > 0 {
				select {
				case <-time.After(m.Delay):
				case <-ctx.Done():
					return
				}
			}

			p := Partial{
				SegmentID: req.SegmentID,
				Text:      strings.Join(words[:i], " "),
				EmittedAt: time.Now(),
			}
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}

		final := Partial{
			SegmentID: req.SegmentID,
			Text:      text,
			Final:     true,
			EmittedAt: time.Now(),
		}
		select {
		case out <- final:
		case <-ctx.Done():
		}
	}()

	return out, nil
}
