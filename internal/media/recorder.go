package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strings"
	"sync"
)

const vp9Encoder = "libvpx-vp9"

// StreamRecorder muxes the original video track with the engine's
// mixed audio into a WebM file. VP9 is preferred for the video track,
// with a plain libvpx fallback when the local ffmpeg lacks the
// encoder. The engine feeds raw samples through Sink while recording.
type StreamRecorder struct {
	videoPath  string
	outputPath string
	sampleRate int
	logger     *slog.Logger

	// test seams over the ffmpeg binary
	lookPath     func(file string) (string, error)
	listEncoders func(ctx context.Context, bin string) (string, error)

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  bytes.Buffer
	aborted bool
	mu      sync.Mutex
}

// NewRecorder creates a recorder for one export pass. The audio track
// is mono at the given sample rate.
func NewRecorder(videoPath, outputPath string, sampleRate int, logger *slog.Logger) *StreamRecorder {
	return &StreamRecorder{
		videoPath:    videoPath,
		outputPath:   outputPath,
		sampleRate:   sampleRate,
		logger:       logger,
		lookPath:     exec.LookPath,
		listEncoders: runEncoderList,
	}
}

// Supported reports whether combined stream capture is possible, which
// requires an ffmpeg binary on the path.
func (r *StreamRecorder) Supported() bool {
	_, err := r.lookPath("ffmpeg")
	return err == nil
}

// Start launches the muxing process. The recorder is single-use.
func (r *StreamRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return fmt.Errorf("recorder already started")
	}

	bin, err := r.lookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	vp9 := r.vp9Available(ctx, bin)
	if !vp9 {
		r.logger.Warn("VP9 encoder unavailable, falling back to VP8")
	}

	cmd := exec.CommandContext(ctx, bin, r.buildArgs(vp9)...)
	cmd.Stderr = &r.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open recorder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start recorder: %w", err)
	}

	r.cmd = cmd
	r.stdin = stdin
	r.logger.Info("Recording started",
		slog.String("output", r.outputPath),
		slog.Bool("vp9", vp9))
	return nil
}

// buildArgs assembles the ffmpeg invocation: video track re-encoded
// into WebM, audio track read as raw samples from stdin.
func (r *StreamRecorder) buildArgs(vp9 bool) []string {
	codec := "libvpx"
	if vp9 {
		codec = vp9Encoder
	}

	return []string{
		"-y", "-v", "error",
		"-i", r.videoPath,
		"-f", "f32le",
		"-ar", fmt.Sprintf("%d", r.sampleRate),
		"-ac", "1",
		"-i", "pipe:0",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", codec,
		"-c:a", "libopus",
		"-f", "webm",
		r.outputPath,
	}
}

// vp9Available checks the local encoder list for libvpx-vp9.
func (r *StreamRecorder) vp9Available(ctx context.Context, bin string) bool {
	out, err := r.listEncoders(ctx, bin)
	if err != nil {
		return false
	}
	return strings.Contains(out, vp9Encoder)
}

// Sink returns the capture sink the engine writes mixed audio to.
// Writes before Start or after Stop are dropped.
func (r *StreamRecorder) Sink() *PCMSink {
	return &PCMSink{recorder: r}
}

// Stop closes the audio stream, waits for the muxer to flush, and
// returns the output path.
func (r *StreamRecorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return "", fmt.Errorf("recorder not started")
	}

	r.stdin.Close()
	if err := r.cmd.Wait(); err != nil {
		return "", fmt.Errorf("recorder failed: %w (%s)", err, strings.TrimSpace(r.stderr.String()))
	}

	r.logger.Info("Recording finalized", slog.String("output", r.outputPath))
	return r.outputPath, nil
}

// Abort kills the muxer and removes the partial file; a failed export
// must not leave output behind.
func (r *StreamRecorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil || r.aborted {
		return
	}
	r.aborted = true

	r.stdin.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.cmd.Wait()

	if err := os.Remove(r.outputPath); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("Failed to remove partial recording",
			slog.String("output", r.outputPath),
			slog.String("error", err.Error()))
	}
}

// writeSamples feeds one block of mixed audio into the muxer.
func (r *StreamRecorder) writeSamples(data []byte) {
	r.mu.Lock()
	stdin := r.stdin
	aborted := r.aborted
	r.mu.Unlock()

	if stdin == nil || aborted {
		return
	}
	if _, err := stdin.Write(data); err != nil {
		r.logger.Debug("Capture write dropped", slog.String("error", err.Error()))
	}
}

func runEncoderList(ctx context.Context, bin string) (string, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-hide_banner", "-encoders")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to list encoders: %w", err)
	}
	return stdout.String(), nil
}

// PCMSink converts engine blocks to little-endian float32 samples and
// streams them to the recorder.
type PCMSink struct {
	recorder *StreamRecorder
}

func (s *PCMSink) Write(samples []float64) {
	s.recorder.writeSamples(encodeF32LE(samples))
}

func encodeF32LE(samples []float64) []byte {
	data := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(float32(v)))
	}
	return data
}
