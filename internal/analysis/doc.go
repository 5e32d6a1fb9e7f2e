// Package analysis calls the external dialogue analysis service: it
// uploads the source video and receives the ordered list of dub
// segments with timings, transcripts, translations, and speaker
// labels.
package analysis
