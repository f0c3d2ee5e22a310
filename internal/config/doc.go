// Package config loads, normalizes, and validates lexisub configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LEXISUB_LLM_API_KEY and OPENAI_API_KEY. The Config type centralizes every
// knob the daemon and CLI need: scratch and cache directories, stage timeouts,
// backend selection, and worker pool sizing.
package config
