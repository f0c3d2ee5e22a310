// Package launcher runs external tools for pipeline stages.
//
// Every process is started in its own process group so a timeout can kill
// the whole tree, and the launcher always reaps the child before returning.
// Declared outputs must live under the launcher's scratch root; outputs the
// process did not fully produce are removed on every exit path. The launcher
// also owns per-task scratch directories, guarded by a flock so two runs of
// the same task id can never share one.
package launcher
