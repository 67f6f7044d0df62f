package main

import (
	"fmt"
	"log/slog"

	"slidenotes/internal/config"
	"slidenotes/internal/daemon"
	"slidenotes/internal/jobs"
	"slidenotes/internal/workflow"
)

// bootstrap wires the store, classifier and workflow manager into a daemon.
// The store is closed again when any later step fails.
func bootstrap(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	classifier, err := workflow.NewClassifier(cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create classifier: %w", err)
	}
	mgr := workflow.NewManager(cfg, store, classifier, logger)
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}
