// Package media bridges the audio engine to real video files through
// ffmpeg. It decodes the original program audio into the engine's
// stereo block format, probes container metadata, and records the mixed
// output back into a WebM file muxed with the source video track.
// Everything here shells out to the ffmpeg and ffprobe binaries; the
// rest of the system only sees the engine.ProgramSource and
// export.Recorder interfaces.
package media
