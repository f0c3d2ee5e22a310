package vocabulary

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Namespace is the UUID namespace for candidate identifiers. Changing it
// changes every identifier ever issued.
var Namespace = uuid.MustParse("8d5c2f3e-6a1b-4c7d-9e0f-2a3b4c5d6e7f")

// Normalize returns the canonical comparison form of a word: NFC composed,
// Unicode case folded, surrounding space removed.
func Normalize(word string) string {
	folded := cases.Fold().String(norm.NFC.String(strings.TrimSpace(word)))
	return norm.NFC.String(folded)
}

// StableID derives the identifier for a lexical item. An empty lemma falls
// back to the surface form.
func StableID(lemma, surface string, difficulty Difficulty) string {
	base := Normalize(lemma)
	if base == "" {
		base = Normalize(surface)
	}
	return uuid.NewSHA1(Namespace, []byte(base+"-"+string(difficulty))).String()
}
