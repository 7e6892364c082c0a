package audio

import (
	"fmt"
)

// BytesToSamples converts little-endian PCM-16 bytes into normalized float32
// samples in [-1, 1). The byte length must be even.
func BytesToSamples(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("PCM-16 data length must be even, got %d bytes", len(data))
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(v) / 32768.0
	}

	return samples, nil
}

// SamplesToBytes converts normalized float32 samples into little-endian
// PCM-16 bytes, clamping values outside [-1, 1).
func SamplesToBytes(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := pcm16(s)
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return data
}

func pcm16(s float32) int16 {
	scaled := s * 32768.0
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}
