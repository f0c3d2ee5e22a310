package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultChatEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	defaultChatTimeout  = 60 * time.Second
	defaultAttempts     = 4
	defaultBaseDelay    = 500 * time.Millisecond
	defaultMaxDelay     = 8 * time.Second
)

// ChatConfig holds the endpoint settings for an OpenAI-compatible chat
// completions API.
type ChatConfig struct {
	APIKey   string
	Endpoint string
	Referer  string
	Title    string
	Timeout  time.Duration
}

// ChatClient issues JSON-mode chat completions with retry on transient
// failures.
type ChatClient struct {
	cfg        ChatConfig
	httpClient *http.Client
	attempts   int
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleep      func(context.Context, time.Duration) error
}

// ChatOption customizes a ChatClient.
type ChatOption func(*ChatClient)

// WithChatHTTPClient overrides the HTTP client.
func WithChatHTTPClient(client *http.Client) ChatOption {
	return func(c *ChatClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithChatRetry overrides attempt count and backoff bounds.
func WithChatRetry(attempts int, base, max time.Duration) ChatOption {
	return func(c *ChatClient) {
		c.attempts = attempts
		c.baseDelay = base
		c.maxDelay = max
	}
}

// NewChatClient builds a client; an empty endpoint selects OpenRouter.
func NewChatClient(cfg ChatConfig, opts ...ChatOption) *ChatClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultChatEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultChatTimeout
	}
	c := &ChatClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		attempts:   defaultAttempts,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.attempts <= 0 {
		c.attempts = 1
	}
	return c
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type statusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chat completion: http %d: %s", e.StatusCode, e.Body)
}

type emptyReplyError struct {
	FinishReason string
	Refusal      string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("chat completion: empty content (finish_reason=%q, refusal=%q)", e.FinishReason, e.Refusal)
}

// CompleteJSON sends system and user prompts and returns the raw content of
// the first non-empty choice.
func (c *ChatClient) CompleteJSON(ctx context.Context, model, system, user string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.New("chat completion: api key required")
	}
	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		content, err := c.once(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return "", err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("chat completion: failed after %d attempts: %w", c.attempts, lastErr)
}

func (c *ChatClient) once(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("chat completion: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("chat completion: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("chat completion: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &statusError{
			StatusCode: resp.StatusCode,
			Body:       snippet(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("chat completion: decode: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("chat completion: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	empty := &emptyReplyError{}
	for _, choice := range decoded.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
		if empty.FinishReason == "" {
			empty.FinishReason = choice.FinishReason
		}
		if empty.Refusal == "" {
			empty.Refusal = choice.Message.Refusal
		}
	}
	return "", empty
}

func (c *ChatClient) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.attempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var empty *emptyReplyError
	if errors.As(err, &empty) {
		return c.backoff(attempt), true
	}
	var status *statusError
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusRequestTimeout,
			status.StatusCode == http.StatusTooManyRequests,
			status.StatusCode >= http.StatusInternalServerError:
			if status.RetryAfter > 0 {
				return min(status.RetryAfter, c.maxDelay), true
			}
			return c.backoff(attempt), true
		}
		return 0, false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles from baseDelay per attempt, capped at maxDelay.
func (c *ChatClient) backoff(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt && delay < c.maxDelay; i++ {
		delay *= 2
	}
	return min(delay, c.maxDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

// decodeJSONReply tolerates code fences and prose around the JSON object.
func decodeJSONReply(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}
	body := strings.TrimPrefix(trimmed, "```")
	if body != trimmed {
		body = strings.TrimPrefix(strings.TrimLeft(body, " \t\r\n"), "json")
		if idx := strings.LastIndex(body, "```"); idx >= 0 {
			body = body[:idx]
		}
	}
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in reply: %s", snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), target); err != nil {
		return fmt.Errorf("%w (reply: %s)", err, snippet(trimmed))
	}
	return nil
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	runes := []rune(clean)
	if len(runes) > 160 {
		return string(runes[:160]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}
