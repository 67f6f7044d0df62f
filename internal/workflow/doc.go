// Package workflow owns alignment jobs end to end.
//
// The Manager submits jobs with their segment and slide inputs, runs the
// sequential batch loop for each job, tracks status and progress, and applies
// post-process and move-segment corrections to stored result documents.
// Writes to one job are serialized with an in-process mutex plus the store's
// cross-process file lock, and a corrected or assembled document is only
// saved after the whole pass succeeds.
//
// The poller used by slidenotesd picks up jobs submitted in the created state
// and runs them one at a time.
package workflow
