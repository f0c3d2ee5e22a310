package chunk

import (
	"fmt"

	"lexisub/internal/services"
)

// Segment is a contiguous span of speech relative to the chunk start.
type Segment struct {
	Index          int     `json:"index"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Text           string  `json:"text"`
	TranslatedText string  `json:"translatedText"`
}

// ValidateSegments checks ordering: indices strictly increasing, end after
// start, and no segment starting before its predecessor ends.
func ValidateSegments(segments []Segment) error {
	for i, seg := range segments {
		if seg.End <= seg.Start {
			return &services.ContractViolationError{
				Field:  "segment.end",
				Reason: fmt.Sprintf("segment %d ends at %.3f before or at its start %.3f", seg.Index, seg.End, seg.Start),
			}
		}
		if i == 0 {
			continue
		}
		prev := segments[i-1]
		if seg.Index <= prev.Index {
			return &services.ContractViolationError{
				Field:  "segment.index",
				Reason: fmt.Sprintf("segment index %d does not follow %d", seg.Index, prev.Index),
			}
		}
		if seg.Start < prev.End {
			return &services.ContractViolationError{
				Field:  "segment.start",
				Reason: fmt.Sprintf("segment %d starts at %.3f before segment %d ends at %.3f", seg.Index, seg.Start, prev.Index, prev.End),
			}
		}
	}
	return nil
}

// Reindex assigns 0-based indices in slice order.
func Reindex(segments []Segment) []Segment {
	for i := range segments {
		segments[i].Index = i
	}
	return segments
}
