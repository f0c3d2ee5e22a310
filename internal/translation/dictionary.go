package translation

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"lexisub/internal/vocabulary"
)

// BackendDictionary is the registry name of the offline gloss backend.
const BackendDictionary = "dictionary"

type dictionaryBackend struct {
	catalog *vocabulary.Catalog
}

// NewDictionaryConstructor returns a constructor for the word-by-word gloss
// backend. Unknown words pass through unchanged.
func NewDictionaryConstructor(catalog *vocabulary.Catalog) Constructor {
	return func(BuildParams) (Backend, error) {
		if catalog == nil {
			return nil, errors.New("dictionary backend requires a lexicon catalog")
		}
		return &dictionaryBackend{catalog: catalog}, nil
	}
}

func (b *dictionaryBackend) Name() string { return BackendDictionary }

func (b *dictionaryBackend) Translate(ctx context.Context, text string, call CallParams) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, invocationError(BackendDictionary, err)
	}
	lex := b.catalog.Lexicon(call.SourceLang)
	target := call.TargetLang

	var out, word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		raw := word.String()
		word.Reset()
		entry, ok := lex.Lookup(vocabulary.Normalize(raw))
		gloss := ""
		if ok {
			gloss = entry.Gloss[target]
		}
		if gloss == "" {
			out.WriteString(raw)
			return
		}
		if r := []rune(raw); unicode.IsUpper(r[0]) {
			g := []rune(gloss)
			g[0] = unicode.ToUpper(g[0])
			gloss = string(g)
		}
		out.WriteString(gloss)
	}
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsLetter(r) || unicode.IsMark(r) {
			word.WriteRune(r)
			continue
		}
		flush()
		out.WriteRune(r)
	}
	flush()
	return Result{TranslatedText: out.String(), Backend: BackendDictionary}, nil
}
