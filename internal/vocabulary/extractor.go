package vocabulary

import (
	"strings"
	"unicode/utf8"

	"lexisub/internal/chunk"
	"lexisub/internal/language"
)

// Options tunes extraction.
type Options struct {
	MinTokenLength int
	MaxCandidates  int
}

// Extractor derives candidates using a lexicon catalog.
type Extractor struct {
	catalog *Catalog
	opts    Options
}

// NewExtractor constructs an extractor. A nil catalog falls back to the
// built-in lexicons.
func NewExtractor(catalog *Catalog, opts Options) (*Extractor, error) {
	if catalog == nil {
		var err error
		if catalog, err = LoadCatalog(""); err != nil {
			return nil, err
		}
	}
	if opts.MinTokenLength < 1 {
		opts.MinTokenLength = 1
	}
	return &Extractor{catalog: catalog, opts: opts}, nil
}

// Catalog exposes the lexicons, shared with the dictionary translator.
func (e *Extractor) Catalog() *Catalog {
	return e.catalog
}

// Extract returns candidates in order of first occurrence, deduplicated by
// identifier. Candidates are source-language words; translated text only
// supplies glosses.
func (e *Extractor) Extract(segments []chunk.Segment, sourceLang, targetLang string) ([]Candidate, error) {
	lex := e.catalog.Lexicon(language.ToISO2(sourceLang))
	targetLang = language.ToISO2(targetLang)

	seen := make(map[string]struct{})
	var out []Candidate
	for _, seg := range segments {
		tokens := Tokenize(seg.Text)
		single := singleWordTranslation(tokens, seg.TranslatedText)
		for _, surface := range tokens {
			key := Normalize(surface)
			if utf8.RuneCountInString(key) < e.opts.MinTokenLength || lex.IsStopWord(key) {
				continue
			}
			lemma, level, gloss := "", LevelUnknown, ""
			if entry, ok := lex.Lookup(key); ok {
				lemma, level = entry.Lemma, entry.Level
				gloss = entry.Gloss[targetLang]
			}
			if gloss == "" {
				gloss = single
			}
			candidate, err := NewCandidate(surface, lemma, level, gloss)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[candidate.Identifier]; dup {
				continue
			}
			seen[candidate.Identifier] = struct{}{}
			out = append(out, candidate)
			if e.opts.MaxCandidates > 0 && len(out) >= e.opts.MaxCandidates {
				return out, nil
			}
		}
	}
	return out, nil
}

// singleWordTranslation returns the translated text when the source segment
// consists of exactly one token, trimmed of punctuation.
func singleWordTranslation(tokens []string, translated string) string {
	if len(tokens) != 1 {
		return ""
	}
	return strings.TrimFunc(strings.TrimSpace(translated), func(r rune) bool {
		return strings.ContainsRune(".,!?;:\"'¡¿«»„“”", r)
	})
}
