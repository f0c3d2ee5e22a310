// Package main hosts the lexisub CLI entrypoint and command graph.
//
// The Cobra command tree either runs chunks in-process (`process`), hosts the
// daemon and its HTTP control API (`serve`), or talks to a running daemon
// (`submit`, `status`, `cancel`, `result`). Configuration is resolved once per
// invocation and shared by every subcommand.
package main
