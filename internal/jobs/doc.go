// Package jobs persists alignment jobs: their inputs, status, progress, and
// result documents.
//
// Two Store implementations exist. RelationalStore keeps everything in a
// SQLite database (WAL, busy retry). FilesystemStore keeps one directory per
// job with atomic temp-file writes. Open selects one from configuration.
// Both guard result writes across processes with a per-job file lock.
package jobs
