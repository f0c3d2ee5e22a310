// Package translation translates transcript text between languages.
//
// Backends are obtained from a Factory that accepts one flat parameter set
// and splits it into two disjoint types: BuildParams, which identify and
// construct a backend instance, and CallParams, which travel with every
// Translate call. Constructors cannot see CallParams and Translate cannot see
// BuildParams, so per-call routing data can never leak into instance
// identity. Instances are cached by (name, BuildParams).
//
// Two backends ship: llm (an OpenRouter-compatible chat completions
// endpoint) and dictionary (an offline word-by-word gloss built on the
// vocabulary lexicons). Memory adds a SQLite translation cache in front of
// either.
package translation
