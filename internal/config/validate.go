package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. The LLM api key is not
// required here; commands that call the classifier check it themselves so
// read-only commands work without credentials.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateAlignment(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageSQLite, StorageFilesystem:
		return nil
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want %q or %q)", c.Storage.Backend, StorageSQLite, StorageFilesystem)
	}
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderOpenAI:
	default:
		return fmt.Errorf("llm.provider: unsupported value %q (want %q or %q)", c.LLM.Provider, ProviderOpenRouter, ProviderOpenAI)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateAlignment() error {
	if err := ensurePositiveMap(map[string]int{
		"alignment.max_batch_chars":   c.Alignment.MaxBatchChars,
		"alignment.correction_radius": c.Alignment.CorrectionRadius,
		"alignment.resplit_max_chars": c.Alignment.ResplitMaxChars,
		"workflow.poll_interval":      c.Workflow.PollInterval,
	}); err != nil {
		return err
	}
	if c.Alignment.SlideWindow < 0 {
		return errors.New("alignment.slide_window must be zero or positive")
	}
	if c.Alignment.MinBatchChars < 0 {
		return errors.New("alignment.min_batch_chars must be zero or positive")
	}
	if c.Alignment.MinBatchChars > c.Alignment.MaxBatchChars {
		return errors.New("alignment.min_batch_chars must not exceed alignment.max_batch_chars")
	}
	switch c.Alignment.OnBatchFailure {
	case FailureAbort, FailureSkip:
	default:
		return fmt.Errorf("alignment.on_batch_failure: unsupported value %q (want %q or %q)", c.Alignment.OnBatchFailure, FailureAbort, FailureSkip)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
