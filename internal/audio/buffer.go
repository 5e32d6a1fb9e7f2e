package audio

import (
	"fmt"
)

// Buffer holds decoded PCM audio as float64 samples per channel, normalized
// to [-1, 1]. A Buffer is immutable once produced: every transformation
// (trimming, conversion) allocates a new one.
type Buffer struct {
	channels   [][]float64
	sampleRate int
}

// NewBuffer creates a buffer from per-channel sample data. All channels must
// have the same length.
func NewBuffer(channels [][]float64, sampleRate int) (*Buffer, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("buffer needs at least one channel")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	frames := len(channels[0])
	for i, ch := range channels {
		if len(ch) != frames {
			return nil, fmt.Errorf("channel %d has %d samples, expected %d", i, len(ch), frames)
		}
	}

	return &Buffer{channels: channels, sampleRate: sampleRate}, nil
}

// FromPCM16 converts interleaved-free mono PCM-16 samples into a buffer.
func FromPCM16(samples []int16, sampleRate int) (*Buffer, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot build buffer from empty samples")
	}

	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = float64(s) / 32768.0
	}

	return NewBuffer([][]float64{data}, sampleRate)
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	return len(b.channels)
}

// SampleRate returns the sample rate in Hz.
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.Frames()) / float64(b.sampleRate)
}

// Channel returns the sample data for one channel. Callers must not modify
// the returned slice.
func (b *Buffer) Channel(i int) []float64 {
	return b.channels[i]
}

// ToPCM16 converts channel 0 back to PCM-16 samples, clamping out-of-range
// values instead of wrapping. The 32768 scale matches FromPCM16 so a
// conversion round trip is sample-exact.
func (b *Buffer) ToPCM16() []int16 {
	src := b.channels[0]
	out := make([]int16, len(src))
	for i, s := range src {
		v := s * 32768.0
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
