package audio

import (
	"fmt"
)

// FrameSizeFor returns the VAD frame length in samples for a sample rate.
// Only 16 kHz (512 samples) and 8 kHz (256 samples) are defined; any other
// rate must be rejected during configuration.
func FrameSizeFor(sampleRate int) (int, error) {
	switch sampleRate {
	case 16000:
		return 512, nil
	case 8000:
		return 256, nil
	default:
		return 0, fmt.Errorf("no VAD frame size defined for sample rate %d Hz", sampleRate)
	}
}

// Framer converts an arbitrary-length stream of samples into fixed-size
// frames. Samples that do not fill a complete frame are retained and
// prepended to the next Push, so no sample is ever dropped or duplicated and
// every emitted frame has exactly the configured length.
//
// A Framer is not safe for concurrent use; each session owns its own.
type Framer struct {
	frameSize int
	remainder []float32
	emitted   uint64
}

// NewFramer creates a framer for the given sample rate.
func NewFramer(sampleRate int) (*Framer, error) {
	frameSize, err := FrameSizeFor(sampleRate)
	if err != nil {
		return nil, err
	}

	return &Framer{
		frameSize: frameSize,
		remainder: make([]float32, 0, frameSize),
	}, nil
}

// Push appends samples to the stream and returns every complete frame now
// available. Returned frames are freshly allocated copies; the caller may
// reuse the input slice.
func (f *Framer) Push(samples []float32) [][]float32 {
	if len(samples) == 0 {
		return nil
	}

	total := len(f.remainder) + len(samples)
	numFrames := total / f.frameSize
	if numFrames == 0 {
		f.remainder = append(f.remainder, samples...)
		return nil
	}

	frames := make([][]float32, 0, numFrames)

	// First frame may straddle the retained remainder and the new input.
	offset := 0
	if len(f.remainder) > 0 {
		frame := make([]float32, f.frameSize)
		n := copy(frame, f.remainder)
		offset = copy(frame[n:], samples)
		frames = append(frames, frame)
	}

	for offset+f.frameSize <= len(samples) {
		frame := make([]float32, f.frameSize)
		copy(frame, samples[offset:offset+f.frameSize])
		frames = append(frames, frame)
		offset += f.frameSize
	}

	f.remainder = append(f.remainder[:0], samples[offset:]...)
	f.emitted += uint64(len(frames))

	return frames
}

// Pending returns the number of retained samples that have not yet filled a
// complete frame.
func (f *Framer) Pending() int {
	return len(f.remainder)
}

// FramesEmitted returns the total number of frames produced since creation
// or the last Reset.
func (f *Framer) FramesEmitted() uint64 {
	return f.emitted
}

// FrameSize returns the configured frame length in samples.
func (f *Framer) FrameSize() int {
	return f.frameSize
}

// Reset discards the retained remainder. Used when a session is cleared or
// reconfigured.
func (f *Framer) Reset() {
	f.remainder = f.remainder[:0]
	f.emitted = 0
}
