package vocabulary

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"lexisub/internal/services"
)

// Difficulty is a CEFR level or the explicit unknown sentinel.
type Difficulty string

const (
	LevelA1      Difficulty = "A1"
	LevelA2      Difficulty = "A2"
	LevelB1      Difficulty = "B1"
	LevelB2      Difficulty = "B2"
	LevelC1      Difficulty = "C1"
	LevelC2      Difficulty = "C2"
	LevelUnknown Difficulty = "unknown"
)

// ParseDifficulty maps lexicon spellings (case-insensitive) to a level.
// Anything unrecognised becomes LevelUnknown.
func ParseDifficulty(value string) Difficulty {
	switch d := Difficulty(strings.ToUpper(strings.TrimSpace(value))); d {
	case LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2:
		return d
	default:
		return LevelUnknown
	}
}

// Valid reports whether d is one of the enumerated levels.
func (d Difficulty) Valid() bool {
	switch d {
	case LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2, LevelUnknown:
		return true
	}
	return false
}

// Candidate is one vocabulary item in the downstream wire shape. Optional
// fields are pointers so they encode as explicit JSON null.
type Candidate struct {
	Identifier      string     `json:"identifier"`
	SurfaceForm     string     `json:"surfaceForm"`
	DifficultyLevel Difficulty `json:"difficultyLevel"`
	Translation     *string    `json:"translation"`
	Lemma           *string    `json:"lemma"`
}

// NewCandidate builds a validated candidate. Empty lemma and translation are
// stored as null; the identifier then derives from the surface form.
func NewCandidate(surface, lemma string, difficulty Difficulty, translation string) (Candidate, error) {
	surface = strings.TrimSpace(surface)
	c := Candidate{
		Identifier:      StableID(lemma, surface, difficulty),
		SurfaceForm:     surface,
		DifficultyLevel: difficulty,
		Translation:     optional(translation),
		Lemma:           optional(Normalize(lemma)),
	}
	if err := c.Validate(); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

// Validate checks every field the downstream consumer requires.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.SurfaceForm) == "" {
		return violation("surfaceForm", "must not be empty")
	}
	if !c.DifficultyLevel.Valid() {
		return violation("difficultyLevel", fmt.Sprintf("%q is not a known level", c.DifficultyLevel))
	}
	if len(c.Identifier) != 36 || c.Identifier != strings.ToLower(c.Identifier) {
		return violation("identifier", fmt.Sprintf("%q is not a canonical uuid", c.Identifier))
	}
	id, err := uuid.Parse(c.Identifier)
	if err != nil {
		return violation("identifier", err.Error())
	}
	if id.Version() != 5 || id.Variant() != uuid.RFC4122 {
		return violation("identifier", fmt.Sprintf("%q is not a name-based sha1 uuid", c.Identifier))
	}
	lemma := ""
	if c.Lemma != nil {
		if strings.TrimSpace(*c.Lemma) == "" {
			return violation("lemma", "must be null rather than empty")
		}
		lemma = *c.Lemma
	}
	if want := StableID(lemma, c.SurfaceForm, c.DifficultyLevel); want != c.Identifier {
		return violation("identifier", "does not match lemma and difficulty")
	}
	if c.Translation != nil && strings.TrimSpace(*c.Translation) == "" {
		return violation("translation", "must be null rather than empty")
	}
	return nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func violation(field, reason string) error {
	return &services.ContractViolationError{Field: "candidate." + field, Reason: reason}
}
