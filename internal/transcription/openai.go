package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lexisub/internal/chunk"
	"lexisub/internal/language"
)

// OpenAIName is the registry key for the OpenAI-compatible HTTP backend.
const OpenAIName = "openai"

const defaultOpenAITimeout = 5 * time.Minute

type openAI struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewOpenAI constructs a backend that posts audio to {base}/audio/transcriptions.
func NewOpenAI(opts Options) (Backend, error) {
	cfg := opts.OpenAI
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai transcription requires an api key")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	endpoint, err := url.JoinPath(base, "audio", "transcriptions")
	if err != nil {
		return nil, fmt.Errorf("build transcription url: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultOpenAITimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &openAI{endpoint: endpoint, apiKey: cfg.APIKey, model: model, client: client}, nil
}

func (o *openAI) Name() string { return OpenAIName }

func (o *openAI) Transcribe(ctx context.Context, audioPath, lang string) ([]chunk.Segment, error) {
	body, contentType, err := o.buildForm(audioPath, lang)
	if err != nil {
		return nil, invocationError(OpenAIName, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, body)
	if err != nil {
		return nil, invocationError(OpenAIName, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, invocationError(OpenAIName, fmt.Errorf("http error: %w", err))
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, invocationError(OpenAIName, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, invocationError(OpenAIName, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}
	var payload struct {
		Text     string  `json:"text"`
		Duration float64 `json:"duration"`
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, invocationError(OpenAIName, fmt.Errorf("decode response: %w", err))
	}
	raw := make([]rawSegment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		raw = append(raw, rawSegment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	if len(raw) == 0 && strings.TrimSpace(payload.Text) != "" && payload.Duration > 0 {
		raw = append(raw, rawSegment{Start: 0, End: payload.Duration, Text: payload.Text})
	}
	return toSegments(raw), nil
}

func (o *openAI) buildForm(audioPath, lang string) (io.Reader, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy audio: %w", err)
	}
	fields := map[string]string{
		"model":                     o.model,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "segment",
	}
	if iso := language.ToISO2(lang); iso != "" {
		fields["language"] = iso
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", err
	}
	return &buf, form.FormDataContentType(), nil
}
