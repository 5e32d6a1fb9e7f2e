// Package playback coordinates live preview of the dubbed timeline.
// The controller is a small state machine over the video transport and
// the audio engine: either a single segment is auditioned in place, or
// the whole assembled timeline plays against the video from the start.
// Every state change cancels all in-flight dub clips first so two
// passes can never double-voice each other.
package playback
