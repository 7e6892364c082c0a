package vad

import (
	"testing"
)

func TestEnergyDetectorSilence(t *testing.T) {
	d := NewEnergyDetector(512, 0.5)

	frame := make([]float32, 512)
	for i := 0; i < 10; i++ {
		dec, err := d.Decide(frame)
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if dec.IsSpeech {
			t.Fatalf("frame %d: silence classified as speech (prob %f)", i, dec.Probability)
		}
	}
}

func TestEnergyDetectorLoudSignal(t *testing.T) {
	d := NewEnergyDetector(512, 0.5)

	frame := make([]float32, 512)
	for i := range frame {
		frame[i] = 0.5
	}

	dec, err := d.Decide(frame)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !dec.IsSpeech {
		t.Errorf("loud frame not classified as speech (prob %f)", dec.Probability)
	}
}

func TestEnergyDetectorSmoothing(t *testing.T) {
	d := NewEnergyDetector(512, 0.5)

	loud := make([]float32, 512)
	for i := range loud {
		loud[i] = 0.5
	}
	quiet := make([]float32, 512)

	d.Decide(loud)
	dec, _ := d.Decide(quiet)

	// One quiet frame after a loud one keeps a smoothed residual.
	if dec.Probability <= 0 {
		t.Errorf("smoothed probability = %f, want > 0", dec.Probability)
	}
	if dec.Probability >= 1 {
		t.Errorf("smoothed probability = %f, want < 1", dec.Probability)
	}
}

func TestEnergyDetectorFrameSize(t *testing.T) {
	d := NewEnergyDetector(512, 0.5)

	if _, err := d.Decide(make([]float32, 256)); err == nil {
		t.Error("expected error for wrong frame size")
	}
}

func TestEnergyDetectorFrameIndex(t *testing.T) {
	d := NewEnergyDetector(256, 0.5)
	frame := make([]float32, 256)

	for i := uint64(0); i < 3; i++ {
		dec, _ := d.Decide(frame)
		if dec.FrameIndex != i {
			t.Errorf("FrameIndex = %d, want %d", dec.FrameIndex, i)
		}
	}

	d.Reset()
	dec, _ := d.Decide(frame)
	if dec.FrameIndex != 0 {
		t.Errorf("FrameIndex after reset = %d, want 0", dec.FrameIndex)
	}
}

func TestMockReplaysScript(t *testing.T) {
	m := &Mock{Script: []bool{true, true, false}}
	frame := make([]float32, 512)

	want := []bool{true, true, false, false, false}
	for i, w := range want {
		dec, err := m.Decide(frame)
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if dec.IsSpeech != w {
			t.Errorf("frame %d: IsSpeech = %v, want %v", i, dec.IsSpeech, w)
		}
	}

	m.Reset()
	dec, _ := m.Decide(frame)
	if !dec.IsSpeech {
		t.Error("script did not rewind after reset")
	}
}
