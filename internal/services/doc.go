// Package services defines shared utilities consumed by the pipeline stages
// and backend integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and the typed stage
//     errors (timeout, execution, backend invocation, contract violation)
//     whose Category is the stable failure code shown to API callers.
//
// Use these helpers when wiring new stage logic so failure reporting stays
// uniform across the pipeline.
package services
