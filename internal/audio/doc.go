// Package audio provides the PCM buffer type shared across the engine,
// the RIFF/WAVE codec used for synthesized speech clips, and the
// silence trimmer applied to decoded clips before scheduling.
package audio
