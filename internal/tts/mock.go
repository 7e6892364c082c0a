package tts

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/talkflow/talkflow/internal/audio"
)

// Mock generates a short sine tone whose length scales with the text, so the
// pipeline can be exercised without a synthesis server.
type Mock struct {
	// SampleRate of the generated audio. Defaults to 16000.
	SampleRate int
}

// Synthesize renders a placeholder tone for the text.
func (m *Mock) Synthesize(_ context.Context, text, _, voice string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot synthesize empty text")
	}

	rate := m.SampleRate
	if rate <= 0 {
		rate = 16000
	}

	// Roughly 60ms of tone per character, capped at 5 seconds.
	n := len(text) * rate * 60 / 1000
	if max := rate * 5; n > max {
		n = max
	}

	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.2 * float32(math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}

	wav, err := audio.EncodeWAV(samples, rate)
	if err != nil {
		return nil, err
	}

	return &Result{
		Audio:      wav,
		SampleRate: rate,
		Voice:      voice,
	}, nil
}
