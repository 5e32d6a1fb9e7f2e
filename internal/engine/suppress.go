package engine

import (
	"fmt"
	"sync"
)

// Crossover and cancellation constants for the suppression topology. The
// crossover sits below the dialogue band so bass instruments and low
// ambience pass untouched; Q of 0.5 is critically damped, avoiding a
// resonant bump where the branches meet.
const (
	CrossoverFreq = 250.0
	CrossoverQ    = 0.5

	// DifferenceMakeupGain compensates the level loss inherent to the L-R
	// difference signal in the treble branch.
	DifferenceMakeupGain = 2.0
)

// SuppressionNetwork is the fixed signal graph that attenuates center-panned
// dialogue above the crossover while preserving bass and stereo ambience.
// The topology is built once; the only runtime-variable parameter is the
// background volume, which ramps linearly across each processing block so
// changes never produce an audible click.
type SuppressionNetwork struct {
	sampleRate int

	lpL *biquad
	lpR *biquad
	hpL *biquad
	hpR *biquad

	gain       float64 // current ramp position
	gainTarget float64

	mu sync.Mutex
}

// NewSuppressionNetwork builds the full suppression topology for the given
// engine sample rate. backgroundVolume starts at 1.0.
func NewSuppressionNetwork(sampleRate int) (*SuppressionNetwork, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	return &SuppressionNetwork{
		sampleRate: sampleRate,
		lpL:        newLowpass(sampleRate, CrossoverFreq, CrossoverQ),
		lpR:        newLowpass(sampleRate, CrossoverFreq, CrossoverQ),
		hpL:        newHighpass(sampleRate, CrossoverFreq, CrossoverQ),
		hpR:        newHighpass(sampleRate, CrossoverFreq, CrossoverQ),
		gain:       1.0,
		gainTarget: 1.0,
	}, nil
}

// SetBackgroundVolume updates the gain applied before suppression. The new
// value takes effect over the next processing block. Values are clamped to
// [0, 1].
func (n *SuppressionNetwork) SetBackgroundVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	n.mu.Lock()
	n.gainTarget = v
	n.mu.Unlock()
}

// BackgroundVolume returns the current gain target.
func (n *SuppressionNetwork) BackgroundVolume() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gainTarget
}

// Process runs one block of program audio through the network and returns
// the vocal-suppressed mono output. Input is per-channel sample data; mono
// input is treated as identical left/right, which the cancellation stage
// removes entirely above the crossover (the center-channel assumption).
func (n *SuppressionNetwork) Process(input [][]float64) []float64 {
	if len(input) == 0 || len(input[0]) == 0 {
		return nil
	}

	left := input[0]
	right := left
	if len(input) > 1 {
		right = input[1]
	}

	frames := len(left)
	out := make([]float64, frames)

	n.mu.Lock()
	gain := n.gain
	target := n.gainTarget
	n.mu.Unlock()

	// Linear ramp from the previous block's gain to the target across this
	// block keeps volume changes free of discontinuities.
	step := 0.0
	if frames > 0 {
		step = (target - gain) / float64(frames)
	}

	for i := 0; i < frames; i++ {
		gain += step
		l := left[i] * gain
		r := right[i] * gain

		// Bass branch: mono downmix below the crossover, no cancellation.
		bass := (n.lpL.process(l) + n.lpR.process(r)) * 0.5

		// Treble branch: invert right, sum, makeup gain. Content identical
		// on both channels cancels; stereo-only ambience passes.
		treble := (n.hpL.process(l) - n.hpR.process(r)) * DifferenceMakeupGain

		out[i] = bass + treble
	}

	n.mu.Lock()
	n.gain = target
	n.mu.Unlock()

	return out
}

// Reset clears all filter state, used when the engine seeks or the project
// is torn down and rebuilt.
func (n *SuppressionNetwork) Reset() {
	n.lpL.reset()
	n.lpR.reset()
	n.hpL.reset()
	n.hpR.reset()
}
