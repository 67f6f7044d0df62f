// Command slidenotes aligns lecture transcript segments with slide captions
// and edits the resulting notes.
//
// Jobs run in-process by default; `align --detach` only stores the job so
// slidenotesd can pick it up. Every command works directly against the
// configured job store.
package main
