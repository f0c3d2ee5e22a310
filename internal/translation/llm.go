package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexisub/internal/language"
)

// BackendLLM is the registry name of the chat completions backend.
const BackendLLM = "llm"

const systemPrompt = `You translate subtitle lines for language learners.
Return JSON only, in the form {"translation": "<text>"}.
Translate the user's line from %s to %s. Keep it short enough to read as a subtitle.
Do not add notes, quotes, or transliteration. %s`

var qualityHints = map[string]string{
	QualityFast:     "Prefer a literal rendering.",
	QualityStandard: "Prefer natural phrasing that stays close to the source.",
	QualityHigh:     "Prefer idiomatic phrasing and preserve register and tone.",
}

type llmBackend struct {
	client *ChatClient
	model  string
	slots  chan struct{}
}

// NewLLMConstructor returns a constructor whose instances share client.
// BuildParams.Model overrides defaultModel; BatchSize bounds concurrent
// requests per instance.
func NewLLMConstructor(client *ChatClient, defaultModel string) Constructor {
	return func(build BuildParams) (Backend, error) {
		if client == nil {
			return nil, errors.New("llm backend requires a chat client")
		}
		model := build.Model
		if model == "" {
			model = strings.TrimSpace(defaultModel)
		}
		if model == "" {
			return nil, errors.New("llm backend requires a model")
		}
		return &llmBackend{
			client: client,
			model:  model,
			slots:  make(chan struct{}, max(build.BatchSize, 1)),
		}, nil
	}
}

func (b *llmBackend) Name() string { return BackendLLM }

func (b *llmBackend) Translate(ctx context.Context, text string, call CallParams) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Backend: BackendLLM}, nil
	}
	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		return Result{}, invocationError(BackendLLM, ctx.Err())
	}
	defer func() { <-b.slots }()

	hint := qualityHints[call.Quality]
	if hint == "" {
		hint = qualityHints[QualityStandard]
	}
	prompt := fmt.Sprintf(systemPrompt,
		language.DisplayName(call.SourceLang),
		language.DisplayName(call.TargetLang),
		hint)
	content, err := b.client.CompleteJSON(ctx, b.model, prompt, text)
	if err != nil {
		return Result{}, invocationError(BackendLLM, err)
	}
	var reply struct {
		Translation *string `json:"translation"`
	}
	if err := decodeJSONReply(content, &reply); err != nil {
		return Result{}, invocationError(BackendLLM, fmt.Errorf("parse reply: %w", err))
	}
	if reply.Translation == nil {
		return Result{}, invocationError(BackendLLM, errors.New("reply missing translation field"))
	}
	return Result{TranslatedText: strings.TrimSpace(*reply.Translation), Backend: BackendLLM}, nil
}
