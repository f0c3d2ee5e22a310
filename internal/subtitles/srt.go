package subtitles

import (
	"fmt"
	"strconv"
	"strings"
)

// Render writes blocks as SRT text with LF line endings.
func Render(blocks []Block) string {
	if len(blocks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, block := range blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", block.Index, block.Start, block.End, block.Text)
	}
	return b.String()
}

// Parse reads SRT text back into blocks.
func Parse(content string) ([]Block, error) {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if content == "" {
		return nil, nil
	}
	raw := strings.Split(content, "\n\n")
	blocks := make([]Block, 0, len(raw))
	for _, cue := range raw {
		lines := strings.Split(strings.TrimSpace(cue), "\n")
		if len(lines) < 2 {
			return nil, fmt.Errorf("srt block %q is incomplete", cue)
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("srt block index %q: %w", lines[0], err)
		}
		startText, endText, ok := strings.Cut(lines[1], "-->")
		if !ok {
			return nil, fmt.Errorf("srt block %d has no timing line", index)
		}
		start, err := ParseTimestamp(startText)
		if err != nil {
			return nil, err
		}
		end, err := ParseTimestamp(endText)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, Block{
			Index:   index,
			Start:   formatMillis(start),
			End:     formatMillis(end),
			Text:    strings.Join(lines[2:], "\n"),
			StartMS: start,
			EndMS:   end,
		})
	}
	return blocks, nil
}
