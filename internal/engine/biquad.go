package engine

import "math"

// biquad is a second-order IIR filter section in transposed direct form II.
// Coefficients follow the RBJ audio EQ cookbook with width expressed as Q,
// the same convention the rest of the processing chain uses.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

// newLowpass creates a lowpass biquad with the given cutoff and Q.
func newLowpass(sampleRate int, freq, q float64) *biquad {
	w0 := 2 * math.Pi * freq / float64(sampleRate)
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha
	f := &biquad{
		b0: (1 - cosW) / 2 / a0,
		b1: (1 - cosW) / a0,
		b2: (1 - cosW) / 2 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}
	return f
}

// newHighpass creates a highpass biquad with the given cutoff and Q.
func newHighpass(sampleRate int, freq, q float64) *biquad {
	w0 := 2 * math.Pi * freq / float64(sampleRate)
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha
	f := &biquad{
		b0: (1 + cosW) / 2 / a0,
		b1: -(1 + cosW) / a0,
		b2: (1 + cosW) / 2 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}
	return f
}

// process filters a single sample.
func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

// reset clears the filter state.
func (f *biquad) reset() {
	f.z1 = 0
	f.z2 = 0
}
