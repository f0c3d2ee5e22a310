package chunk_test

import (
	"errors"
	"math"
	"testing"

	"lexisub/internal/chunk"
	"lexisub/internal/services"
)

func TestStateTransitionsAreLinear(t *testing.T) {
	order := []chunk.State{
		chunk.StatePending,
		chunk.StateExtractingAudio,
		chunk.StateTranscribing,
		chunk.StateTranslating,
		chunk.StateExtractingVocabulary,
		chunk.StateAssemblingSubtitles,
		chunk.StateCompleted,
	}
	for i := 0; i < len(order)-1; i++ {
		if !order[i].CanTransition(order[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", order[i], order[i+1])
		}
		for j := range order {
			if j == i+1 {
				continue
			}
			if order[i].CanTransition(order[j]) {
				t.Fatalf("expected %s -> %s to be illegal", order[i], order[j])
			}
		}
		if !order[i].CanTransition(chunk.StateFailed) {
			t.Fatalf("expected %s -> failed to be legal", order[i])
		}
	}
}

func TestTerminalStatesDoNotTransition(t *testing.T) {
	for _, terminal := range []chunk.State{chunk.StateCompleted, chunk.StateFailed} {
		if !terminal.Terminal() {
			t.Fatalf("expected %s to be terminal", terminal)
		}
		for _, next := range append(chunk.Stages(), chunk.StatePending, chunk.StateCompleted, chunk.StateFailed) {
			if terminal.CanTransition(next) {
				t.Fatalf("terminal %s must not transition to %s", terminal, next)
			}
		}
	}
	if chunk.State("bogus").CanTransition(chunk.StateFailed) {
		t.Fatal("unknown state must not transition")
	}
}

func TestStagesAndOrdinal(t *testing.T) {
	stages := chunk.Stages()
	if len(stages) != 5 {
		t.Fatalf("expected 5 working stages, got %d", len(stages))
	}
	if stages[0] != chunk.StateExtractingAudio || stages[4] != chunk.StateAssemblingSubtitles {
		t.Fatalf("unexpected stage order: %v", stages)
	}
	if idx, total := chunk.StateTranslating.Ordinal(); idx != 3 || total != 5 {
		t.Fatalf("translating ordinal = %d/%d, want 3/5", idx, total)
	}
	if idx, _ := chunk.StatePending.Ordinal(); idx != 0 {
		t.Fatalf("pending ordinal = %d, want 0", idx)
	}
	if next, ok := chunk.StateAssemblingSubtitles.Next(); !ok || next != chunk.StateCompleted {
		t.Fatalf("unexpected successor %q", next)
	}
	if _, ok := chunk.StateCompleted.Next(); ok {
		t.Fatal("completed has no successor")
	}
}

func validRequest() chunk.Request {
	return chunk.Request{
		TaskID:      "task-1",
		MediaRef:    "/media/film.mkv",
		StartOffset: 0,
		EndOffset:   5,
		SourceLang:  "de",
		TargetLang:  "en",
	}
}

func TestRequestValidate(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := map[string]func(*chunk.Request){
		"missing media":   func(r *chunk.Request) { r.MediaRef = " " },
		"negative start":  func(r *chunk.Request) { r.StartOffset = -1 },
		"end before":      func(r *chunk.Request) { r.EndOffset = 0 },
		"nan":             func(r *chunk.Request) { r.EndOffset = math.NaN() },
		"bad source lang": func(r *chunk.Request) { r.SourceLang = "zz9" },
		"empty target":    func(r *chunk.Request) { r.TargetLang = "" },
		"missing task id": func(r *chunk.Request) { r.TaskID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			err := req.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if services.Classify(err) != services.CategoryValidation {
				t.Fatalf("unexpected category %q", services.Classify(err))
			}
		})
	}
}

func TestRequestNormalizeAssignsTaskIDAndLanguages(t *testing.T) {
	req := validRequest()
	req.TaskID = ""
	req.SourceLang = "de-DE"
	req.TargetLang = "english"

	got, err := req.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got.TaskID) != 36 {
		t.Fatalf("expected generated uuid task id, got %q", got.TaskID)
	}
	if got.SourceLang != "de" || got.TargetLang != "en" {
		t.Fatalf("unexpected languages %q -> %q", got.SourceLang, got.TargetLang)
	}
	if got.Duration() != 5 {
		t.Fatalf("duration = %v", got.Duration())
	}
}

func TestValidateSegments(t *testing.T) {
	good := []chunk.Segment{
		{Index: 0, Start: 0, End: 1.2, Text: "Hallo"},
		{Index: 1, Start: 1.2, End: 2.5, Text: ""},
		{Index: 2, Start: 3, End: 4, Text: "Welt"},
	}
	if err := chunk.ValidateSegments(good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	overlap := []chunk.Segment{
		{Index: 0, Start: 0, End: 2},
		{Index: 1, Start: 1.5, End: 3},
	}
	var cv *services.ContractViolationError
	if err := chunk.ValidateSegments(overlap); !errors.As(err, &cv) || cv.Field != "segment.start" {
		t.Fatalf("expected overlap violation, got %v", err)
	}

	reversed := []chunk.Segment{{Index: 0, Start: 2, End: 1}}
	if err := chunk.ValidateSegments(reversed); !errors.As(err, &cv) || cv.Field != "segment.end" {
		t.Fatalf("expected end violation, got %v", err)
	}

	badIndex := []chunk.Segment{{Index: 1, Start: 0, End: 1}, {Index: 1, Start: 1, End: 2}}
	if err := chunk.ValidateSegments(badIndex); !errors.As(err, &cv) || cv.Field != "segment.index" {
		t.Fatalf("expected index violation, got %v", err)
	}
}
