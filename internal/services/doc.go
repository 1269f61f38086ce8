// Package services defines shared utilities consumed by the pipeline stages
// and external tool integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that classify failures
//     into the kinds the coordinator and CLI act on (not-found, integrity,
//     tool-unavailable, transient, ...).
//   - Bounded retry with backoff for failures tagged as transient.
//   - Context helpers that stamp archive names, stage names, and correlation
//     identifiers for logging.
//   - A thin command Executor abstraction that makes external tool invocation
//     testable without the real binaries.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
