// Package transport abstracts the video surface the dubbing session is
// synchronized against. A Transport exposes the playhead of the source
// video: position, duration, play/pause state, and an end-of-media
// signal. The engine schedules dubbed clips relative to this playhead.
//
// SimTransport is a wall-clock simulation used when no real player is
// attached, such as headless export runs and tests.
package transport
