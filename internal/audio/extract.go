// Package audio extracts the speech track of a chunk window into a mono PCM
// WAV file suitable for transcription backends.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"lexisub/internal/launcher"
	"lexisub/internal/services"
)

// OutputName is the file written into the task scratch directory.
const OutputName = "audio.wav"

// Runner executes an external process; *launcher.Launcher satisfies it.
type Runner interface {
	Run(ctx context.Context, spec launcher.Spec) (launcher.Result, error)
}

// Extractor runs ffmpeg through a Runner.
type Extractor struct {
	runner     Runner
	binary     string
	sampleRate int
	timeout    time.Duration
}

// NewExtractor constructs an extractor. sampleRate defaults to 16 kHz.
func NewExtractor(runner Runner, ffmpegBinary string, sampleRate int, timeout time.Duration) *Extractor {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Extractor{runner: runner, binary: ffmpegBinary, sampleRate: sampleRate, timeout: timeout}
}

// Extract writes the [start, end) window of source into destDir and returns
// the WAV path.
func (e *Extractor) Extract(ctx context.Context, source string, start, end float64, destDir string) (string, error) {
	if end <= start {
		return "", services.Wrap(services.ErrValidation, "extracting_audio", "window", fmt.Sprintf("invalid window %.3f-%.3f", start, end), nil)
	}
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrValidation, "extracting_audio", "stat source", "media reference does not exist", err)
		}
		return "", fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrValidation, "extracting_audio", "stat source", "media reference is a directory", nil)
	}

	dest := filepath.Join(destDir, OutputName)
	res, err := e.runner.Run(ctx, launcher.Spec{
		Stage:      "extracting_audio",
		Executable: e.binary,
		Args:       BuildArgs(source, start, end-start, e.sampleRate, dest),
		Timeout:    e.timeout,
		Outputs:    []string{dest},
		Inputs:     []string{source},
	})
	if err != nil {
		return "", err
	}
	return res.Outputs[0], nil
}

// BuildArgs returns ffmpeg arguments that seek to start, read duration
// seconds, drop video/subtitle/data streams, and write mono signed 16-bit PCM.
func BuildArgs(source string, start, duration float64, sampleRate int, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
