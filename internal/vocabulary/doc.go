// Package vocabulary derives learnable word candidates from a transcript.
//
// Tokens are normalized (NFC, case folded), filtered against per-language
// stop words, mapped to a lemma and CEFR level through a YAML lexicon, and
// given a stable identifier: a name-based SHA-1 UUID over the normalized
// lemma (or surface form) and difficulty under a fixed namespace. The same
// word at the same level therefore yields the same identifier in every run,
// which is what downstream learning-progress records join on.
package vocabulary
