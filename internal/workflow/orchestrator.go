package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lexisub/internal/chunk"
	"lexisub/internal/logging"
	"lexisub/internal/metrics"
	"lexisub/internal/progress"
	"lexisub/internal/services"
	"lexisub/internal/subtitles"
	"lexisub/internal/transcription"
	"lexisub/internal/translation"
	"lexisub/internal/vocabulary"
)

// Scratch provides per-task working directories; *launcher.Launcher
// satisfies it.
type Scratch interface {
	TaskDir(taskID string) (string, error)
	Release(taskID string)
}

// AudioExtractor cuts the chunk window into a WAV file.
type AudioExtractor interface {
	Extract(ctx context.Context, source string, start, end float64, destDir string) (string, error)
}

// Translators hands out translation backends; *translation.Factory
// satisfies it.
type Translators interface {
	Get(name string, params translation.FactoryParams) (translation.Backend, translation.CallParams, error)
}

// VocabularyExtractor derives candidates from translated segments.
type VocabularyExtractor interface {
	Extract(segments []chunk.Segment, sourceLang, targetLang string) ([]vocabulary.Candidate, error)
}

// TranslationSettings selects the backend and instance parameters used for
// every task.
type TranslationSettings struct {
	Backend   string
	Model     string
	Device    string
	BatchSize int
	Quality   string
	Timeout   time.Duration
}

// Dependencies collects the collaborators of an Orchestrator.
type Dependencies struct {
	Scratch     Scratch
	Audio       AudioExtractor
	Transcriber transcription.Backend
	Translators Translators
	Translation TranslationSettings
	Vocabulary  VocabularyExtractor
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// Result is the artifact set of a completed task.
type Result struct {
	TaskID     string                 `json:"taskId"`
	Subtitles  []subtitles.Block      `json:"subtitles"`
	SRT        string                 `json:"srt"`
	Vocabulary []vocabulary.Candidate `json:"vocabulary"`
	Segments   []chunk.Segment        `json:"segments"`
}

// Orchestrator runs single tasks. It holds no per-task state and is safe for
// concurrent use.
type Orchestrator struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewOrchestrator validates deps.
func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Scratch == nil:
		return nil, errors.New("workflow: scratch provider required")
	case deps.Audio == nil:
		return nil, errors.New("workflow: audio extractor required")
	case deps.Transcriber == nil:
		return nil, errors.New("workflow: transcription backend required")
	case deps.Translators == nil:
		return nil, errors.New("workflow: translation factory required")
	case deps.Vocabulary == nil:
		return nil, errors.New("workflow: vocabulary extractor required")
	case deps.Translation.Backend == "":
		return nil, errors.New("workflow: translation backend name required")
	}
	return &Orchestrator{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "workflow"),
	}, nil
}

// task carries the mutable state of one run.
type task struct {
	req       chunk.Request
	tracker   *progress.Tracker
	cancelled func() bool
	logger    *slog.Logger

	dir      string
	audio    string
	segments []chunk.Segment
	vocab    []vocabulary.Candidate
	blocks   []subtitles.Block
}

type stageFunc func(ctx context.Context, t *task) error

// Run processes req, which must already be registered with tracker via
// Begin. cancelled is polled at every stage boundary; a stage that has
// started always runs to completion or failure. The tracker ends in
// completed with the Result, or failed with the error category.
func (o *Orchestrator) Run(ctx context.Context, req chunk.Request, tracker *progress.Tracker, cancelled func() bool) (res Result, err error) {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	ctx = services.WithTaskID(ctx, req.TaskID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	t := &task{
		req:       req,
		tracker:   tracker,
		cancelled: cancelled,
		logger:    logging.WithContext(ctx, o.logger),
	}

	o.deps.Metrics.TaskStarted()
	started := time.Now()
	defer func() {
		o.deps.Scratch.Release(req.TaskID)
		o.finish(t, started, res, err)
	}()

	stages := []struct {
		state chunk.State
		run   stageFunc
	}{
		{chunk.StateExtractingAudio, o.extractAudio},
		{chunk.StateTranscribing, o.transcribe},
		{chunk.StateTranslating, o.translate},
		{chunk.StateExtractingVocabulary, o.extractVocabulary},
		{chunk.StateAssemblingSubtitles, o.assemble},
	}
	for _, stage := range stages {
		if err := o.checkCancelled(ctx, t, stage.state); err != nil {
			return Result{}, err
		}
		if err := o.runStage(ctx, t, stage.state, stage.run); err != nil {
			return Result{}, err
		}
	}

	res = Result{
		TaskID:     req.TaskID,
		Subtitles:  t.blocks,
		SRT:        subtitles.Render(t.blocks),
		Vocabulary: t.vocab,
		Segments:   t.segments,
	}
	return res, nil
}

func (o *Orchestrator) checkCancelled(ctx context.Context, t *task, next chunk.State) error {
	if t.cancelled() {
		return services.Wrap(services.ErrCancelled, string(next), "cancel", "task cancelled before stage start", nil)
	}
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrCancelled, string(next), "cancel", "processing stopped", err)
	}
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, t *task, state chunk.State, run stageFunc) error {
	stageCtx := services.WithStage(ctx, string(state))
	logger := logging.WithContext(stageCtx, o.logger)
	index, total := state.Ordinal()
	t.tracker.Update(t.req.TaskID, state, stagePercent(index-1, total, 0), nil)

	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	stageStart := time.Now()
	err := run(stageCtx, t)
	elapsed := time.Since(stageStart)
	o.deps.Metrics.ObserveStage(string(state), elapsed)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, services.ErrCancelled) {
			return services.Wrap(services.ErrCancelled, string(state), "run", "processing stopped during stage", err)
		}
		return err
	}
	t.tracker.Update(t.req.TaskID, state, stagePercent(index, total, 0), nil)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", elapsed),
	)
	return nil
}

func (o *Orchestrator) finish(t *task, started time.Time, res Result, err error) {
	if err == nil {
		t.tracker.Complete(t.req.TaskID, res)
		o.deps.Metrics.TaskFinished(metrics.OutcomeCompleted)
		t.logger.Info("task completed",
			logging.String(logging.FieldEventType, "task_complete"),
			logging.Int("subtitle_blocks", len(res.Subtitles)),
			logging.Int("vocabulary_candidates", len(res.Vocabulary)),
			logging.Duration("task_duration", time.Since(started)),
		)
		return
	}
	t.tracker.Update(t.req.TaskID, chunk.StateFailed, 0, err)
	category := services.Classify(err)
	if category == services.CategoryCancelled {
		o.deps.Metrics.TaskFinished(metrics.OutcomeCancelled)
		t.logger.Info("task cancelled",
			logging.String(logging.FieldEventType, "task_cancelled"),
			logging.Duration("task_duration", time.Since(started)),
		)
		return
	}
	o.deps.Metrics.TaskFinished(metrics.OutcomeFailed)
	logging.ErrorWithContext(t.logger, "task failed", "task_failed",
		logging.String("error_category", string(category)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(category)),
	)
}

func (o *Orchestrator) extractAudio(ctx context.Context, t *task) error {
	dir, err := o.deps.Scratch.TaskDir(t.req.TaskID)
	if err != nil {
		return fmt.Errorf("prepare scratch: %w", err)
	}
	t.dir = dir
	path, err := o.deps.Audio.Extract(ctx, t.req.MediaRef, t.req.StartOffset, t.req.EndOffset, dir)
	if err != nil {
		return err
	}
	t.audio = path
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, t *task) error {
	segments, err := o.deps.Transcriber.Transcribe(ctx, t.audio, t.req.SourceLang)
	if err != nil {
		return err
	}
	if err := chunk.ValidateSegments(segments); err != nil {
		return err
	}
	t.segments = segments
	t.logger.Debug("transcription finished",
		logging.String(logging.FieldBackend, o.deps.Transcriber.Name()),
		logging.Int("segments", len(segments)),
	)
	return nil
}

func (o *Orchestrator) translate(ctx context.Context, t *task) error {
	s := o.deps.Translation
	backend, call, err := o.deps.Translators.Get(s.Backend, translation.FactoryParams{
		Model:      s.Model,
		Device:     s.Device,
		BatchSize:  s.BatchSize,
		SourceLang: t.req.SourceLang,
		TargetLang: t.req.TargetLang,
		Quality:    s.Quality,
	})
	if err != nil {
		return err
	}
	callCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	index, total := chunk.StateTranslating.Ordinal()
	translated, err := translation.TranslateSegments(callCtx, backend, call, t.segments, func(done, count int) {
		t.tracker.Update(t.req.TaskID, chunk.StateTranslating, stagePercent(index-1, total, float64(done)/float64(count)), nil)
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			timeout := &services.StageTimeoutError{Stage: string(chunk.StateTranslating), Executable: backend.Name(), Timeout: s.Timeout}
			return &services.BackendInvocationError{Backend: backend.Name(), Op: "translate", Err: timeout}
		}
		return err
	}
	t.segments = translated
	return nil
}

func (o *Orchestrator) extractVocabulary(_ context.Context, t *task) error {
	candidates, err := o.deps.Vocabulary.Extract(t.segments, t.req.SourceLang, t.req.TargetLang)
	if err != nil {
		return err
	}
	t.vocab = candidates
	return nil
}

func (o *Orchestrator) assemble(_ context.Context, t *task) error {
	blocks, err := subtitles.Assemble(t.segments)
	if err != nil {
		return err
	}
	t.blocks = blocks
	return nil
}

// stagePercent maps completed stages plus the fraction of the current stage
// onto 0-100.
func stagePercent(completed, total int, fraction float64) float64 {
	if total <= 0 {
		return 0
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return (float64(completed) + fraction) / float64(total) * 100
}

func hintFor(category services.Category) string {
	switch category {
	case services.CategoryStageTimeout:
		return "raise the stage timeout or shorten the chunk"
	case services.CategoryStageExecution:
		return "check the external tool stderr in the error message"
	case services.CategoryBackendInvocation:
		return "check backend credentials, model and connectivity"
	case services.CategoryContractViolation:
		return "backend output violated ordering or field constraints"
	case services.CategoryValidation:
		return "check the request fields"
	case services.CategoryConfiguration:
		return "check the lexisub config file"
	default:
		return "check logs for details"
	}
}
