// Package workflow drives chunk tasks through the processing pipeline.
//
// Orchestrator runs one task through extracting_audio, transcribing,
// translating, extracting_vocabulary and assembling_subtitles in that order,
// reporting progress to a tracker after every stage and releasing the task's
// scratch directory on every exit path. Manager owns the tracker, admits at
// most one active run per task id, and executes runs on a bounded worker
// pool with a retention janitor for finished records.
package workflow
