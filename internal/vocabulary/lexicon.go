package vocabulary

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicons/*.yaml
var builtin embed.FS

// Entry describes one lemma.
type Entry struct {
	Lemma string
	Level Difficulty
	Gloss map[string]string
}

// Lexicon maps normalized words of one language to entries.
type Lexicon struct {
	Language string
	entries  map[string]*Entry
	forms    map[string]string
	stop     map[string]struct{}
}

type lexiconFile struct {
	Language  string               `yaml:"language"`
	StopWords []string             `yaml:"stop_words"`
	Entries   map[string]entryFile `yaml:"entries"`
}

type entryFile struct {
	Level string            `yaml:"level"`
	Gloss map[string]string `yaml:"gloss"`
	Forms []string          `yaml:"forms"`
}

func emptyLexicon(lang string) *Lexicon {
	return &Lexicon{
		Language: lang,
		entries:  map[string]*Entry{},
		forms:    map[string]string{},
		stop:     map[string]struct{}{},
	}
}

func (l *Lexicon) merge(doc lexiconFile) {
	for _, word := range doc.StopWords {
		if w := Normalize(word); w != "" {
			l.stop[w] = struct{}{}
		}
	}
	for key, raw := range doc.Entries {
		lemma := Normalize(key)
		if lemma == "" {
			continue
		}
		gloss := make(map[string]string, len(raw.Gloss))
		for lang, text := range raw.Gloss {
			if text = strings.TrimSpace(text); text != "" {
				gloss[strings.ToLower(strings.TrimSpace(lang))] = text
			}
		}
		l.entries[lemma] = &Entry{Lemma: lemma, Level: ParseDifficulty(raw.Level), Gloss: gloss}
		for _, form := range raw.Forms {
			if f := Normalize(form); f != "" {
				l.forms[f] = lemma
			}
		}
	}
}

// Lookup finds the entry for a normalized token, resolving inflected forms.
func (l *Lexicon) Lookup(token string) (Entry, bool) {
	if l == nil {
		return Entry{}, false
	}
	if e, ok := l.entries[token]; ok {
		return *e, true
	}
	if lemma, ok := l.forms[token]; ok {
		if e, ok := l.entries[lemma]; ok {
			return *e, true
		}
	}
	return Entry{}, false
}

// IsStopWord reports whether token is excluded from candidates.
func (l *Lexicon) IsStopWord(token string) bool {
	if l == nil {
		return false
	}
	_, ok := l.stop[token]
	return ok
}

// Len returns the number of lemmas.
func (l *Lexicon) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Catalog holds one lexicon per language.
type Catalog struct {
	byLang map[string]*Lexicon
}

// LoadCatalog reads the built-in lexicons and then merges every <lang>.yaml
// found in overrideDir over them. An empty overrideDir uses built-ins only.
func LoadCatalog(overrideDir string) (*Catalog, error) {
	c := &Catalog{byLang: map[string]*Lexicon{}}
	err := fs.WalkDir(builtin, "lexicons", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := builtin.ReadFile(path)
		if err != nil {
			return err
		}
		return c.add(path, data)
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) == "" {
		return c, nil
	}
	matches, err := filepath.Glob(filepath.Join(overrideDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list lexicons: %w", err)
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read lexicon %s: %w", path, err)
		}
		if err := c.add(path, data); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(path string, data []byte) error {
	var doc lexiconFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode lexicon %s: %w", path, err)
	}
	lang := strings.ToLower(strings.TrimSpace(doc.Language))
	if lang == "" {
		return fmt.Errorf("lexicon %s has no language", path)
	}
	lex, ok := c.byLang[lang]
	if !ok {
		lex = emptyLexicon(lang)
		c.byLang[lang] = lex
	}
	lex.merge(doc)
	return nil
}

// Lexicon returns the lexicon for lang, or an empty one. Never nil.
func (c *Catalog) Lexicon(lang string) *Lexicon {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if c != nil {
		if lex, ok := c.byLang[lang]; ok {
			return lex
		}
	}
	return emptyLexicon(lang)
}
