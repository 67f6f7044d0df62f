package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"slidenotes/internal/alignment"
	"slidenotes/internal/config"
)

// readSegments loads transcript segments stored either as a bare array or as
// {"segments": [...]}.
func readSegments(path string) ([]alignment.Segment, error) {
	var wrapped struct {
		Segments []alignment.Segment `json:"segments"`
	}
	var segments []alignment.Segment
	if err := readListOrObject(path, &segments, &wrapped); err != nil {
		return nil, err
	}
	if segments == nil {
		segments = wrapped.Segments
	}
	return segments, nil
}

// readSlides loads slide captions stored either as a bare array or as
// {"slides": [...]}.
func readSlides(path string) ([]alignment.Slide, error) {
	var wrapped struct {
		Slides []alignment.Slide `json:"slides"`
	}
	var slides []alignment.Slide
	if err := readListOrObject(path, &slides, &wrapped); err != nil {
		return nil, err
	}
	if slides == nil {
		slides = wrapped.Slides
	}
	return slides, nil
}

func readListOrObject(path string, list, object any) error {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimSpace(data)
	target := object
	if bytes.HasPrefix(data, []byte("[")) {
		target = list
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
