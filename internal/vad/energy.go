package vad

import (
	"math"
)

// energyFloor is the RMS level (on normalized samples) treated as certain
// silence; probabilities scale linearly above it.
const energyFloor = 0.01

// EnergyDetector is a simple RMS-energy detector with light exponential
// smoothing. It stands in for a real model backend and shares its contract:
// fixed-size frames in, one decision per frame out.
type EnergyDetector struct {
	frameSize int
	threshold float32
	smoothing float32

	lastProb float32
	frames   uint64
}

// NewEnergyDetector creates a detector for the given frame size and speech
// probability threshold.
func NewEnergyDetector(frameSize int, threshold float32) *EnergyDetector {
	return &EnergyDetector{
		frameSize: frameSize,
		threshold: threshold,
		smoothing: 0.3,
	}
}

// Decide classifies one frame by RMS energy.
func (d *EnergyDetector) Decide(frame []float32) (Decision, error) {
	if len(frame) != d.frameSize {
		return Decision{}, &InvalidFrameSizeError{Got: len(frame), Want: d.frameSize}
	}

	var energy float64
	for _, s := range frame {
		energy += float64(s) * float64(s)
	}
	rms := math.Sqrt(energy / float64(len(frame)))

	// Map RMS onto a [0,1] probability; full scale well before clipping.
	prob := float32(rms / (energyFloor * 20))
	if prob > 1 {
		prob = 1
	}

	if d.frames > 0 {
		prob = d.smoothing*prob + (1-d.smoothing)*d.lastProb
	}
	d.lastProb = prob

	decision := Decision{
		FrameIndex:  d.frames,
		IsSpeech:    prob >= d.threshold,
		Probability: prob,
	}
	d.frames++

	return decision, nil
}

// Reset clears smoothing history and the frame counter.
func (d *EnergyDetector) Reset() {
	d.lastProb = 0
	d.frames = 0
}
