package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind names the failure taxonomy used by jobs and the CLI.
type ErrorKind string

const (
	KindInput         ErrorKind = "input"
	KindOracle        ErrorKind = "oracle"
	KindLookup        ErrorKind = "lookup"
	KindConfiguration ErrorKind = "configuration"
	KindTransient     ErrorKind = "transient"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its taxonomy kind. Input errors fail a run
// outright, oracle errors fail a batch, lookup errors are recoverable
// per-request failures that leave stored results untouched.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindInput
	case errors.Is(err, ErrNotFound):
		return KindLookup
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrExternalTool), errors.Is(err, ErrTimeout):
		return KindOracle
	default:
		return KindTransient
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
