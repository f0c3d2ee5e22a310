// Package daemon hosts the long-running lexisub service: a flock-guarded
// single instance that owns the workflow manager and exposes it over a small
// HTTP/JSON control API, plus the client the CLI uses to talk to it.
package daemon
