// Package logging assembles structured slog loggers and formatting helpers used
// across slidenotes.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so alignment code can tag log lines with
// job IDs, stages, and batch indices. Stdout is never written by default; it
// belongs to command output.
package logging
