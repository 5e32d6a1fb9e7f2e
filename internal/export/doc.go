// Package export orchestrates rendering the dubbed video to a file.
// One export pass walks a fixed pipeline: synthesize any segments that
// still lack audio, schedule the full timeline with the monitor muted,
// capture the combined video and mixed-audio stream, then hold the
// recorder open long enough for any dub tail that runs past the end of
// the video. Capture capability is probed before recording starts, and
// a failed export leaves the session untouched and retryable.
package export
