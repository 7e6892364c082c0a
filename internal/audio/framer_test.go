package audio

import (
	"testing"
)

func TestFrameSizeFor(t *testing.T) {
	tests := []struct {
		rate    int
		want    int
		wantErr bool
	}{
		{16000, 512, false},
		{8000, 256, false},
		{44100, 0, true},
		{0, 0, true},
	}

	for _, tt := range tests {
		got, err := FrameSizeFor(tt.rate)
		if tt.wantErr {
			if err == nil {
				t.Errorf("FrameSizeFor(%d) expected error, got %d", tt.rate, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("FrameSizeFor(%d) unexpected error: %v", tt.rate, err)
		}
		if got != tt.want {
			t.Errorf("FrameSizeFor(%d) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}

func TestFramerExactFramesNoLoss(t *testing.T) {
	framer, err := NewFramer(16000)
	if err != nil {
		t.Fatalf("NewFramer failed: %v", err)
	}

	// Chunk sizes chosen to never align with the 512-sample frame boundary.
	chunkSizes := []int{100, 412, 1000, 24, 511, 513, 2048, 7}

	var input []float32
	var output []float32
	next := float32(0)

	for _, size := range chunkSizes {
		chunk := make([]float32, size)
		for i := range chunk {
			chunk[i] = next
			next++
		}
		input = append(input, chunk...)

		for _, frame := range framer.Push(chunk) {
			if len(frame) != 512 {
				t.Fatalf("frame length = %d, want 512", len(frame))
			}
			output = append(output, frame...)
		}
	}

	if len(output)+framer.Pending() != len(input) {
		t.Fatalf("sample count mismatch: %d emitted + %d pending != %d pushed",
			len(output), framer.Pending(), len(input))
	}

	for i, s := range output {
		if s != input[i] {
			t.Fatalf("sample %d reordered: got %f, want %f", i, s, input[i])
		}
	}

	wantFrames := uint64(len(input) / 512)
	if framer.FramesEmitted() != wantFrames {
		t.Errorf("FramesEmitted = %d, want %d", framer.FramesEmitted(), wantFrames)
	}
}

func TestFramerRemainderCarry(t *testing.T) {
	framer, err := NewFramer(16000)
	if err != nil {
		t.Fatalf("NewFramer failed: %v", err)
	}

	if frames := framer.Push(make([]float32, 300)); len(frames) != 0 {
		t.Fatalf("expected no frames from 300 samples, got %d", len(frames))
	}
	if framer.Pending() != 300 {
		t.Errorf("Pending = %d, want 300", framer.Pending())
	}

	frames := framer.Push(make([]float32, 300))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame from 600 total samples, got %d", len(frames))
	}
	if framer.Pending() != 88 {
		t.Errorf("Pending = %d, want 88", framer.Pending())
	}
}

func TestFramerReset(t *testing.T) {
	framer, err := NewFramer(8000)
	if err != nil {
		t.Fatalf("NewFramer failed: %v", err)
	}

	framer.Push(make([]float32, 300))
	framer.Reset()

	if framer.Pending() != 0 {
		t.Errorf("Pending after reset = %d, want 0", framer.Pending())
	}
	if framer.FramesEmitted() != 0 {
		t.Errorf("FramesEmitted after reset = %d, want 0", framer.FramesEmitted())
	}
}
