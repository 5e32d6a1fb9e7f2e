// Package engine implements the real-time audio core: the dialogue
// suppression network (250 Hz crossover with mid/side cancellation above the
// crossover), the mono mix bus that combines program audio with scheduled
// dub voices, the sample-counter engine clock, and the monitor/capture sink
// fan-out.
package engine
