package audio

import "math"

// TrimThreshold is the absolute amplitude above which a sample counts as
// audible when trimming leading/trailing silence from a synthesized clip.
const TrimThreshold = 0.02

// TrimSilence removes near-silent samples from the start and end of a
// buffer. Channel 0 decides the trim points; all channels are cut to the
// same range. If the whole buffer sits below the threshold, or the detected
// range would be empty, the original buffer is returned unchanged. The
// trimmer never produces a zero-length buffer.
//
// Trimming is idempotent: the first and last samples of a trimmed buffer
// already exceed the threshold, so a second pass finds the same range.
func TrimSilence(b *Buffer) *Buffer {
	ref := b.Channel(0)

	start := -1
	for i, s := range ref {
		if math.Abs(s) > TrimThreshold {
			start = i
			break
		}
	}
	if start < 0 {
		return b
	}

	end := -1
	for i := len(ref) - 1; i >= 0; i-- {
		if math.Abs(ref[i]) > TrimThreshold {
			end = i + 1 // exclusive
			break
		}
	}
	if end <= start {
		return b
	}

	if start == 0 && end == len(ref) {
		return b
	}

	channels := make([][]float64, b.NumChannels())
	for c := range channels {
		src := b.Channel(c)
		out := make([]float64, end-start)
		copy(out, src[start:end])
		channels[c] = out
	}

	trimmed, err := NewBuffer(channels, b.SampleRate())
	if err != nil {
		// The range is validated above; constructing from it cannot fail.
		return b
	}
	return trimmed
}
