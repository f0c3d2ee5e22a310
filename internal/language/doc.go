// Package language normalizes the language codes carried on chunk requests.
//
// Callers may pass ISO 639-1, ISO 639-2, English language names, or BCP-47
// tags such as "de-DE"; Parse reduces all of them to the two-letter base
// code that backends, lexicons, and the translation memory key on.
package language
