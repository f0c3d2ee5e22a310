package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lexisub/internal/chunk"
	"lexisub/internal/language"
	"lexisub/internal/launcher"
)

// WhisperCPPName is the registry key for the whisper.cpp backend.
const WhisperCPPName = "whispercpp"

type whisperCPP struct {
	binary  string
	model   string
	runner  Runner
	timeout time.Duration
}

// NewWhisperCPP constructs the whisper.cpp backend.
func NewWhisperCPP(opts Options) (Backend, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("whispercpp requires a process runner")
	}
	if strings.TrimSpace(opts.WhisperCPP.Model) == "" {
		return nil, fmt.Errorf("whispercpp requires a model path")
	}
	binary := opts.WhisperCPP.Binary
	if binary == "" {
		binary = "whisper-cli"
	}
	return &whisperCPP{binary: binary, model: opts.WhisperCPP.Model, runner: opts.Runner, timeout: opts.Timeout}, nil
}

func (w *whisperCPP) Name() string { return WhisperCPPName }

func (w *whisperCPP) Transcribe(ctx context.Context, audioPath, lang string) ([]chunk.Segment, error) {
	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".whispercpp"
	jsonPath := base + ".json"
	args := []string{"-m", w.model, "-f", audioPath, "-oj", "-of", base, "-np"}
	if iso := language.ToISO2(lang); iso != "" {
		args = append(args, "-l", iso)
	}
	_, err := w.runner.Run(ctx, launcher.Spec{
		Stage:      "transcribing",
		Executable: w.binary,
		Args:       args,
		Timeout:    w.timeout,
		Outputs:    []string{jsonPath},
		Inputs:     []string{audioPath},
	})
	if err != nil {
		return nil, invocationError(WhisperCPPName, err)
	}
	raw, err := loadWhisperCPPJSON(jsonPath)
	if err != nil {
		return nil, invocationError(WhisperCPPName, err)
	}
	return toSegments(raw), nil
}

type whisperCPPPayload struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func loadWhisperCPPJSON(path string) ([]rawSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whispercpp json: %w", err)
	}
	var payload whisperCPPPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whispercpp json: %w", err)
	}
	raw := make([]rawSegment, 0, len(payload.Transcription))
	for _, seg := range payload.Transcription {
		raw = append(raw, rawSegment{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  seg.Text,
		})
	}
	return raw, nil
}
