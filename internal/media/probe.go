package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoAudioTrack means the video container has no decodable audio
// stream. Playback continues with suppression silently disabled.
var ErrNoAudioTrack = errors.New("video has no decodable audio track")

// ProbeDuration returns the container duration of a media file in
// seconds, read with ffprobe.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := runProbe(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable duration %q for %s: %w", strings.TrimSpace(out), path, err)
	}
	return duration, nil
}

// probeHasAudio reports whether the file carries at least one audio
// stream.
func probeHasAudio(ctx context.Context, path string) (bool, error) {
	out, err := runProbe(ctx,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return false, fmt.Errorf("failed to probe %s: %w", path, err)
	}
	return strings.Contains(out, "audio"), nil
}

func runProbe(ctx context.Context, args ...string) (string, error) {
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		return "", fmt.Errorf("ffprobe not found: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffprobe failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
