// Package subtitles turns translated transcript segments into SRT blocks.
//
// Assemble enforces segment ordering instead of repairing it, converts
// offsets to whole milliseconds exactly once so adjacent blocks never drift
// apart, and numbers blocks from 1 in output order. Render and Parse convert
// between blocks and SRT text.
package subtitles
