// Package daemon coordinates the long-running slidenotesd process.
//
// It wires configuration, the job store and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Alignment itself lives in the alignment and workflow packages; the daemon
// only owns startup, shutdown and status reporting.
package daemon
