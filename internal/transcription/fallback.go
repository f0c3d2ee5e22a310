package transcription

import (
	"context"
	"errors"
	"log/slog"

	"lexisub/internal/chunk"
	"lexisub/internal/logging"
	"lexisub/internal/services"
)

type fallbackBackend struct {
	primary  Backend
	fallback Backend
	logger   *slog.Logger
}

// WithFallback returns a backend that tries fallback once when primary
// fails. Cancellation is never retried.
func WithFallback(primary, fallback Backend, logger *slog.Logger) Backend {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &fallbackBackend{primary: primary, fallback: fallback, logger: logger}
}

func (f *fallbackBackend) Name() string {
	return f.primary.Name()
}

func (f *fallbackBackend) Transcribe(ctx context.Context, audioPath, language string) ([]chunk.Segment, error) {
	segments, err := f.primary.Transcribe(ctx, audioPath, language)
	if err == nil {
		return segments, nil
	}
	if ctx.Err() != nil || errors.Is(err, services.ErrCancelled) {
		return nil, err
	}
	logging.WarnWithContext(logging.WithContext(ctx, f.logger), "primary transcription backend failed; trying fallback", "transcription_fallback",
		logging.String(logging.FieldBackend, f.primary.Name()),
		logging.String("fallback_backend", f.fallback.Name()),
		logging.Error(err),
		logging.String(logging.FieldImpact, "transcript produced by the fallback backend"),
	)
	segments, fbErr := f.fallback.Transcribe(ctx, audioPath, language)
	if fbErr != nil {
		return nil, &services.BackendInvocationError{
			Backend: f.primary.Name() + "+" + f.fallback.Name(),
			Op:      "transcribe",
			Err:     errors.Join(err, fbErr),
		}
	}
	return segments, nil
}
