package main

import (
	"context"
	"errors"
	"testing"

	"slidenotes/internal/services"
	"slidenotes/internal/testsupport"
)

func TestBootstrapBuildsDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	d, err := bootstrap(cfg, nil)
	if err != nil {
		t.Fatalf("bootstrap returned error: %v", err)
	}
	defer d.Close()

	status := d.Status(context.Background())
	if status.Running {
		t.Fatal("expected daemon to be idle before Start")
	}
	if status.StoreLocation == "" {
		t.Fatal("expected store location")
	}
}

func TestBootstrapRequiresAPIKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.APIKey = ""

	if _, err := bootstrap(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
