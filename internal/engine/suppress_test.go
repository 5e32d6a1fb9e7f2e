package engine

import (
	"math"
	"testing"
)

const testSampleRate = 48000

// sine fills a block with a sine tone at the given frequency and amplitude.
func sine(freq, amplitude float64, frames int) []float64 {
	out := make([]float64, frames)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(testSampleRate))
	}
	return out
}

// rms measures a block's level, skipping the first part so filter
// transients have settled.
func rms(samples []float64) float64 {
	start := len(samples) / 4
	var sum float64
	for _, s := range samples[start:] {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)-start))
}

func TestLowpassPassesDC(t *testing.T) {
	f := newLowpass(testSampleRate, CrossoverFreq, CrossoverQ)

	var y float64
	for i := 0; i < 48000; i++ {
		y = f.process(1.0)
	}

	if math.Abs(y-1.0) > 0.01 {
		t.Errorf("Lowpass should pass DC at unity, settled at %f", y)
	}
}

func TestHighpassBlocksDC(t *testing.T) {
	f := newHighpass(testSampleRate, CrossoverFreq, CrossoverQ)

	var y float64
	for i := 0; i < 48000; i++ {
		y = f.process(1.0)
	}

	if math.Abs(y) > 0.01 {
		t.Errorf("Highpass should block DC, settled at %f", y)
	}
}

func TestCrossoverBranchSeparation(t *testing.T) {
	lp := newLowpass(testSampleRate, CrossoverFreq, CrossoverQ)
	hp := newHighpass(testSampleRate, CrossoverFreq, CrossoverQ)

	// 60 Hz is deep in the bass branch, 2 kHz deep in the treble branch
	low := sine(60, 0.5, 48000)
	high := sine(2000, 0.5, 48000)

	lpLow := make([]float64, len(low))
	hpHigh := make([]float64, len(high))
	for i := range low {
		lpLow[i] = lp.process(low[i])
		hpHigh[i] = hp.process(high[i])
	}

	if rms(lpLow) < rms(low)*0.8 {
		t.Errorf("60 Hz attenuated too much by lowpass: in %f out %f", rms(low), rms(lpLow))
	}

	if rms(hpHigh) < rms(high)*0.8 {
		t.Errorf("2 kHz attenuated too much by highpass: in %f out %f", rms(high), rms(hpHigh))
	}
}

func TestSuppressionCancelsCenteredDialogue(t *testing.T) {
	n, err := NewSuppressionNetwork(testSampleRate)
	if err != nil {
		t.Fatalf("NewSuppressionNetwork failed: %v", err)
	}

	// Identical in-phase content on both channels in the dialogue band
	dialogue := sine(1000, 0.5, 48000)
	out := n.Process([][]float64{dialogue, dialogue})

	// The treble branch cancels completely, but the second-order lowpass
	// leaks roughly 1/17 of a tone two octaves above the crossover into
	// the uncancelled bass branch. Allow that stopband leakage and
	// nothing more.
	if level, in := rms(out), rms(dialogue); level > in*0.08 {
		t.Errorf("Centered 1 kHz content should cancel to stopband leakage, residual RMS %f (in %f)", level, in)
	}
}

func TestSuppressionPreservesBass(t *testing.T) {
	n, err := NewSuppressionNetwork(testSampleRate)
	if err != nil {
		t.Fatalf("NewSuppressionNetwork failed: %v", err)
	}

	// Centered bass must survive: the bass branch applies no cancellation
	bass := sine(60, 0.5, 48000)
	out := n.Process([][]float64{bass, bass})

	if level := rms(out); level < rms(bass)*0.7 {
		t.Errorf("Centered 60 Hz content should be preserved, got RMS %f (in %f)", level, rms(bass))
	}
}

func TestSuppressionPassesStereoAmbience(t *testing.T) {
	n, err := NewSuppressionNetwork(testSampleRate)
	if err != nil {
		t.Fatalf("NewSuppressionNetwork failed: %v", err)
	}

	// Ambience on the left channel only must pass the treble branch
	left := sine(2000, 0.5, 48000)
	right := make([]float64, len(left))
	out := n.Process([][]float64{left, right})

	if level := rms(out); level < 0.1 {
		t.Errorf("Stereo-only 2 kHz content should pass, got RMS %f", level)
	}
}

func TestBackgroundVolumeClamped(t *testing.T) {
	n, err := NewSuppressionNetwork(testSampleRate)
	if err != nil {
		t.Fatalf("NewSuppressionNetwork failed: %v", err)
	}

	n.SetBackgroundVolume(1.5)
	if v := n.BackgroundVolume(); v != 1.0 {
		t.Errorf("Expected volume clamped to 1.0, got %f", v)
	}

	n.SetBackgroundVolume(-0.2)
	if v := n.BackgroundVolume(); v != 0.0 {
		t.Errorf("Expected volume clamped to 0.0, got %f", v)
	}
}

func TestBackgroundVolumeRampsWithoutJump(t *testing.T) {
	n, err := NewSuppressionNetwork(testSampleRate)
	if err != nil {
		t.Fatalf("NewSuppressionNetwork failed: %v", err)
	}

	// Stereo-only signal so the cancellation stage passes it through
	left := sine(2000, 0.5, 4800)
	right := make([]float64, len(left))

	n.Process([][]float64{left, right})
	n.SetBackgroundVolume(0.0)
	faded := n.Process([][]float64{left, right})

	// The ramp starts at the old gain, so the block must not open silent
	head := rms(faded[:64])
	tail := rms(faded[len(faded)-64:])
	if head < tail {
		t.Errorf("Gain should ramp down across the block: head RMS %f, tail RMS %f", head, tail)
	}

	settled := n.Process([][]float64{left, right})
	if level := rms(settled); level > 0.001 {
		t.Errorf("After ramp completes output should be silent, got RMS %f", level)
	}
}
