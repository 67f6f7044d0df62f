// Package alignment assigns transcript segments to lecture slides.
//
// A run batches segments under a character budget, exposes a sliding window of
// candidate slides around a centre that advances after every batch, asks an
// external classifier (the Oracle) for segment-to-slide mappings, and groups
// the result by slide. The Corrector later re-routes text between slides,
// either by re-classifying one slide against its neighbours (post-process) or
// by moving a literal fragment (move-segment).
//
// Result documents use "slideN" and "segmentM" keys with a "Segments" object
// per slide; slide0 collects unmapped text.
package alignment
