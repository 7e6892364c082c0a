package tts

import (
	"context"
)

// Result is synthesized speech for one piece of text.
type Result struct {
	// Audio holds a complete WAV file.
	Audio      []byte
	SampleRate int
	Voice      string
}

// Synthesizer converts text to speech. Implementations are shared across
// sessions and must be safe for concurrent use.
type Synthesizer interface {
	// Synthesize renders text in the given language and voice. An empty
	// voice selects the implementation's default.
	Synthesize(ctx context.Context, text, language, voice string) (*Result, error)
}
