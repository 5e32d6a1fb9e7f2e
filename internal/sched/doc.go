// Package sched computes non-overlapping start times for synthesized dub
// clips relative to an anchor transport time and issues the playback
// commands to the engine.
package sched
