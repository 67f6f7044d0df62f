// Package preflight provides readiness checks for the paths, job store and
// classifier that slidenotes depends on.
//
// These checks run in two contexts:
//   - slidenotesd calls RunAll at startup and logs every failed check.
//   - The CLI "slidenotes status" command renders each Result as a status line.
package preflight
