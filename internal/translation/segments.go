package translation

import (
	"context"
	"strings"

	"lexisub/internal/chunk"
)

// TranslateSegments returns a copy of segments with TranslatedText filled in.
// Segments with empty source text stay empty without calling the backend.
// report, when set, is called after each segment with (done, total).
func TranslateSegments(ctx context.Context, backend Backend, call CallParams, segments []chunk.Segment, report func(done, total int)) ([]chunk.Segment, error) {
	out := make([]chunk.Segment, len(segments))
	copy(out, segments)
	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, invocationError(backend.Name(), err)
		}
		if strings.TrimSpace(out[i].Text) != "" {
			res, err := backend.Translate(ctx, out[i].Text, call)
			if err != nil {
				return nil, invocationError(backend.Name(), err)
			}
			out[i].TranslatedText = res.TranslatedText
		}
		if report != nil {
			report(i+1, len(out))
		}
	}
	return out, nil
}
