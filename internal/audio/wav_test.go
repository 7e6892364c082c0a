package audio

import (
	"math"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = 0.4 * float32(math.Sin(2*math.Pi*220*float64(i)/16000))
	}

	wav, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if len(wav) != 44+len(samples)*2 {
		t.Errorf("WAV size = %d, want %d", len(wav), 44+len(samples)*2)
	}

	decoded, rate, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(samples))
	}

	// PCM-16 quantization allows a small error.
	for i := range samples {
		if diff := math.Abs(float64(decoded[i] - samples[i])); diff > 1.0/32768 {
			t.Fatalf("sample %d diverged by %f", i, diff)
		}
	}
}

func TestEncodeWAVRejectsEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("expected error for empty audio")
	}
	if _, err := EncodeWAV([]float32{0}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("not a wav")); err == nil {
		t.Error("expected error for short data")
	}

	junk := make([]byte, 64)
	if _, _, err := DecodeWAV(junk); err == nil {
		t.Error("expected error for non-RIFF data")
	}
}

func TestBytesToSamples(t *testing.T) {
	// 0x0000 = 0, 0x7FFF ~= 1, 0x8000 = -1
	data := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	samples, err := BytesToSamples(data)
	if err != nil {
		t.Fatalf("BytesToSamples failed: %v", err)
	}

	if samples[0] != 0 {
		t.Errorf("samples[0] = %f, want 0", samples[0])
	}
	if math.Abs(float64(samples[1]-0.99997)) > 0.001 {
		t.Errorf("samples[1] = %f, want ~1", samples[1])
	}
	if samples[2] != -1 {
		t.Errorf("samples[2] = %f, want -1", samples[2])
	}

	if _, err := BytesToSamples([]byte{0x01}); err == nil {
		t.Error("expected error for odd byte count")
	}
}

func TestSamplesToBytesClamps(t *testing.T) {
	data := SamplesToBytes([]float32{2.0, -2.0})

	hi := int16(data[0]) | int16(data[1])<<8
	lo := int16(data[2]) | int16(data[3])<<8
	if hi != 32767 {
		t.Errorf("over-range sample = %d, want 32767", hi)
	}
	if lo != -32768 {
		t.Errorf("under-range sample = %d, want -32768", lo)
	}
}
