package transcription

import (
	"strings"

	"lexisub/internal/chunk"
)

// rawSegment is the common shape every backend decodes into.
type rawSegment struct {
	Start float64
	End   float64
	Text  string
}

// toSegments clips each span so it starts no earlier than the previous one
// ended, drops spans that become empty, and assigns indices. Model output
// that is out of order is left for segment validation to reject. Text is
// trimmed but may be empty.
func toSegments(raw []rawSegment) []chunk.Segment {
	out := make([]chunk.Segment, 0, len(raw))
	var prevEnd float64
	for _, r := range raw {
		start, end := r.Start, r.End
		if start < 0 {
			start = 0
		}
		if start < prevEnd && prevEnd-start < overlapTolerance {
			start = prevEnd
		}
		if end <= start {
			continue
		}
		out = append(out, chunk.Segment{
			Index: len(out),
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(r.Text),
		})
		prevEnd = end
	}
	return out
}

// overlapTolerance is the largest overlap, in seconds, clipped silently.
const overlapTolerance = 0.5
