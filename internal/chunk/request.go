package chunk

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"lexisub/internal/language"
	"lexisub/internal/services"
)

// Request is a submission to process one time window of a source video.
type Request struct {
	TaskID      string  `json:"taskId"`
	MediaRef    string  `json:"mediaRef"`
	StartOffset float64 `json:"startOffset"`
	EndOffset   float64 `json:"endOffset"`
	SourceLang  string  `json:"sourceLang"`
	TargetLang  string  `json:"targetLang"`
}

// Duration returns the window length in seconds.
func (r Request) Duration() float64 {
	return r.EndOffset - r.StartOffset
}

// Normalize trims fields, assigns a task id when absent, and reduces the
// language codes to ISO 639-1. It returns the validated copy.
func (r Request) Normalize() (Request, error) {
	r.TaskID = strings.TrimSpace(r.TaskID)
	if r.TaskID == "" {
		r.TaskID = uuid.NewString()
	}
	r.MediaRef = strings.TrimSpace(r.MediaRef)
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	r.SourceLang, _ = language.Parse(r.SourceLang)
	r.TargetLang, _ = language.Parse(r.TargetLang)
	return r, nil
}

// Validate checks the request invariants: a media reference, a non-negative
// window with end after start, and two recognised languages.
func (r Request) Validate() error {
	if strings.TrimSpace(r.TaskID) == "" {
		return invalid("task id is required")
	}
	if strings.TrimSpace(r.MediaRef) == "" {
		return invalid("media reference is required")
	}
	if isBad(r.StartOffset) || isBad(r.EndOffset) {
		return invalid("window offsets must be finite numbers")
	}
	if r.StartOffset < 0 || r.EndOffset < 0 {
		return invalid(fmt.Sprintf("window offsets must be non-negative (start=%.3f end=%.3f)", r.StartOffset, r.EndOffset))
	}
	if r.EndOffset <= r.StartOffset {
		return invalid(fmt.Sprintf("window end %.3f must be after start %.3f", r.EndOffset, r.StartOffset))
	}
	if _, err := language.Parse(r.SourceLang); err != nil {
		return services.Wrap(services.ErrValidation, "intake", "source language", "Unsupported source language", err)
	}
	if _, err := language.Parse(r.TargetLang); err != nil {
		return services.Wrap(services.ErrValidation, "intake", "target language", "Unsupported target language", err)
	}
	return nil
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func invalid(message string) error {
	return services.Wrap(services.ErrValidation, "intake", "validate request", message, nil)
}
