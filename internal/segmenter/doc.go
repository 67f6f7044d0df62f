// Package segmenter re-splits a slide's aggregate text into sentence-packed
// fragments for post-process re-classification.
package segmenter
