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

// WhisperXName is the registry key for the WhisperX backend.
const WhisperXName = "whisperx"

// WhisperX tuning passed on every invocation.
const (
	whisperXDefaultModel = "large-v3"
	whisperXCommand      = "uvx"
	cudaIndexURL         = "https://download.pytorch.org/whl/cu128"
	pypiIndexURL         = "https://pypi.org/simple"
	whisperXBatchSize    = "4"
	whisperXChunkSize    = "15"
	whisperXVADOnset     = "0.08"
	whisperXVADOffset    = "0.07"
	whisperXBeamSize     = "10"
	whisperXBestOf       = "10"
	whisperXTemperature  = "0.0"
	whisperXPatience     = "1.0"
	segmentResolution    = "sentence"
	vadMethodSilero      = "silero"
	vadMethodPyannote    = "pyannote"
)

type whisperX struct {
	opts    WhisperXOptions
	runner  Runner
	timeout time.Duration
}

// NewWhisperX constructs the WhisperX backend.
func NewWhisperX(opts Options) (Backend, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("whisperx requires a process runner")
	}
	wx := opts.WhisperX
	if wx.Binary == "" {
		wx.Binary = whisperXCommand
	}
	if wx.Model == "" {
		wx.Model = whisperXDefaultModel
	}
	if wx.VADMethod == "" {
		wx.VADMethod = vadMethodSilero
	}
	return &whisperX{opts: wx, runner: opts.Runner, timeout: opts.Timeout}, nil
}

func (w *whisperX) Name() string { return WhisperXName }

func (w *whisperX) Transcribe(ctx context.Context, audioPath, lang string) ([]chunk.Segment, error) {
	outputDir := filepath.Dir(audioPath)
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, base+".json")

	var env []string
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	_, err := w.runner.Run(ctx, launcher.Spec{
		Stage:      "transcribing",
		Executable: w.opts.Binary,
		Args:       w.buildArgs(audioPath, outputDir, lang),
		Env:        env,
		Timeout:    w.timeout,
		Outputs:    []string{jsonPath},
		Inputs:     []string{audioPath},
	})
	if err != nil {
		return nil, invocationError(WhisperXName, err)
	}
	raw, err := loadWhisperXJSON(jsonPath)
	if err != nil {
		return nil, invocationError(WhisperXName, err)
	}
	return toSegments(raw), nil
}

func (w *whisperX) buildArgs(source, outputDir, lang string) []string {
	args := make([]string, 0, 40)
	if w.opts.CUDAEnabled {
		args = append(args, "--index-url", cudaIndexURL, "--extra-index-url", pypiIndexURL)
	} else {
		args = append(args, "--index-url", pypiIndexURL)
	}
	args = append(args,
		"whisperx",
		source,
		"--model", w.opts.Model,
		"--batch_size", whisperXBatchSize,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--segment_resolution", segmentResolution,
		"--chunk_size", whisperXChunkSize,
		"--vad_onset", whisperXVADOnset,
		"--vad_offset", whisperXVADOffset,
		"--beam_size", whisperXBeamSize,
		"--best_of", whisperXBestOf,
		"--temperature", whisperXTemperature,
		"--patience", whisperXPatience,
		"--vad_method", w.opts.VADMethod,
	)
	if w.opts.VADMethod == vadMethodPyannote && w.opts.HFToken != "" {
		args = append(args, "--hf_token", w.opts.HFToken)
	}
	if iso := language.ToISO2(lang); iso != "" {
		args = append(args, "--language", iso)
	}
	if w.opts.CUDAEnabled {
		args = append(args, "--device", "cuda")
	} else {
		args = append(args, "--device", "cpu", "--compute_type", "float32")
	}
	return args
}

type whisperXPayload struct {
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

func loadWhisperXJSON(path string) ([]rawSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whisperx json: %w", err)
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	raw := make([]rawSegment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		raw = append(raw, rawSegment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return raw, nil
}
