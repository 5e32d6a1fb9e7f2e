package media

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"sync"
)

// FFmpegSource decodes a video file's audio track into stereo float
// blocks at the engine sample rate. It owns one long-running ffmpeg
// process writing raw samples to a pipe.
type FFmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	logger *slog.Logger

	drained bool
	mu      sync.Mutex
}

// OpenSource starts decoding the audio track of the given video file.
// Returns ErrNoAudioTrack when the container has no audio stream; the
// caller falls back to a silent program.
func OpenSource(ctx context.Context, path string, sampleRate int, logger *slog.Logger) (*FFmpegSource, error) {
	hasAudio, err := probeHasAudio(ctx, path)
	if err != nil {
		return nil, err
	}
	if !hasAudio {
		return nil, fmt.Errorf("%w: %s", ErrNoAudioTrack, path)
	}

	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-i", path,
		"-map", "0:a:0",
		"-f", "f32le",
		"-ac", "2",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open decoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start decoder: %w", err)
	}

	logger.Info("Program audio decoder started",
		slog.String("path", path),
		slog.Int("sample_rate", sampleRate))

	return &FFmpegSource{cmd: cmd, stdout: stdout, logger: logger}, nil
}

// ReadStereo returns up to frames stereo frames as [left, right]
// channel slices. A nil result with no error means the program audio
// has run out.
func (s *FFmpegSource) ReadStereo(frames int) ([][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drained {
		return nil, nil
	}

	raw := make([]byte, frames*2*4) // 2 channels, 4 bytes per float32
	n, err := io.ReadFull(s.stdout, raw)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			s.drained = true
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read program audio: %w", err)
	}
	if err == io.ErrUnexpectedEOF {
		s.drained = true
	}

	got := n / 8 // whole stereo frames
	if got == 0 {
		return nil, nil
	}

	left := make([]float64, got)
	right := make([]float64, got)
	for i := 0; i < got; i++ {
		left[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:])))
		right[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:])))
	}
	return [][]float64{left, right}, nil
}

// Close stops the decoder process.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
	return nil
}
