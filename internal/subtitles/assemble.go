package subtitles

import (
	"fmt"
	"strings"

	"lexisub/internal/chunk"
	"lexisub/internal/services"
)

// Block is one numbered SRT cue.
type Block struct {
	Index   int    `json:"index"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Text    string `json:"text"`
	StartMS int64  `json:"-"`
	EndMS   int64  `json:"-"`
}

// Assemble converts ordered, non-overlapping segments into SRT blocks.
// Segments carry offsets relative to the chunk start. The cue text is the
// translation, or the source text when no translation exists; segments with
// neither are skipped and do not consume an index.
func Assemble(segments []chunk.Segment) ([]Block, error) {
	if err := chunk.ValidateSegments(segments); err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(segments))
	var prevEnd int64
	for _, seg := range segments {
		text := cueText(seg)
		if text == "" {
			continue
		}
		start := Millis(seg.Start)
		end := Millis(seg.End)
		if start < prevEnd {
			return nil, &services.ContractViolationError{
				Field:  "block.start",
				Reason: fmt.Sprintf("segment %d starts before the previous cue ends", seg.Index),
			}
		}
		blocks = append(blocks, Block{
			Index:   len(blocks) + 1,
			Start:   formatMillis(start),
			End:     formatMillis(end),
			Text:    text,
			StartMS: start,
			EndMS:   end,
		})
		prevEnd = end
	}
	return blocks, nil
}

func cueText(seg chunk.Segment) string {
	if text := normalizeText(seg.TranslatedText); text != "" {
		return text
	}
	return normalizeText(seg.Text)
}

// normalizeText trims each line, collapses internal whitespace, and drops
// blank lines so a cue never contains the SRT block separator.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// CheckMonotonic verifies start <= end <= next start across blocks.
func CheckMonotonic(blocks []Block) error {
	for i, b := range blocks {
		if b.EndMS < b.StartMS {
			return &services.ContractViolationError{Field: "block.end", Reason: fmt.Sprintf("block %d ends before it starts", b.Index)}
		}
		if i > 0 && b.StartMS < blocks[i-1].EndMS {
			return &services.ContractViolationError{Field: "block.start", Reason: fmt.Sprintf("block %d overlaps block %d", b.Index, blocks[i-1].Index)}
		}
	}
	return nil
}
