// Package services defines shared utilities consumed by the alignment engine,
// the job workflow, and the LLM integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, batch indexes, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper and Classify, which sort
//     failures into input, oracle, and lookup errors.
//
// Use these helpers when wiring new engine or workflow code so error handling
// and observability stay uniform.
package services
