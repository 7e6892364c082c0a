package vad

// Mock is a scripted detector for tests and development. It replays a fixed
// sequence of speech flags, then repeats the final entry indefinitely. An
// empty script classifies everything as silence.
type Mock struct {
	Script    []bool
	FrameSize int

	frames uint64
}

// Decide replays the next scripted decision.
func (m *Mock) Decide(frame []float32) (Decision, error) {
	if m.FrameSize > 0 && len(frame) != m.FrameSize {
		return Decision{}, &InvalidFrameSizeError{Got: len(frame), Want: m.FrameSize}
	}

	speech := false
	if len(m.Script) > 0 {
		i := int(m.frames)
		if i >= len(m.Script) {
			i = len(m.Script) - 1
		}
		speech = m.Script[i]
	}

	prob := float32(0.1)
	if speech {
		prob = 0.9
	}

	d := Decision{FrameIndex: m.frames, IsSpeech: speech, Probability: prob}
	m.frames++
	return d, nil
}

// Reset rewinds the script.
func (m *Mock) Reset() {
	m.frames = 0
}
