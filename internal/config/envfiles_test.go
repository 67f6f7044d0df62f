package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"slidenotes/internal/config"
)

func TestLoadEnvFilesKeepsExistingValues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	// Register restores, then clear so the files can supply them.
	t.Setenv("SLIDENOTES_DOTENV_LOCAL", "")
	t.Setenv("SLIDENOTES_DOTENV_HOME", "")
	os.Unsetenv("SLIDENOTES_DOTENV_LOCAL")
	os.Unsetenv("SLIDENOTES_DOTENV_HOME")
	t.Setenv("SLIDENOTES_DOTENV_PRESET", "from-env")

	if err := os.WriteFile(".env", []byte("SLIDENOTES_DOTENV_LOCAL=local\nSLIDENOTES_DOTENV_PRESET=from-file\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	homeEnv := filepath.Join(home, ".config", "slidenotes.env")
	if err := os.MkdirAll(filepath.Dir(homeEnv), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(homeEnv, []byte("SLIDENOTES_DOTENV_LOCAL=home\nSLIDENOTES_DOTENV_HOME=home\n"), 0o644); err != nil {
		t.Fatalf("write home env: %v", err)
	}

	loaded, err := config.LoadEnvFiles()
	if err != nil {
		t.Fatalf("LoadEnvFiles returned error: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected both env files to load, got %v", loaded)
	}
	if got := os.Getenv("SLIDENOTES_DOTENV_LOCAL"); got != "local" {
		t.Fatalf("expected working directory file to win, got %q", got)
	}
	if got := os.Getenv("SLIDENOTES_DOTENV_HOME"); got != "home" {
		t.Fatalf("expected home file value, got %q", got)
	}
	if got := os.Getenv("SLIDENOTES_DOTENV_PRESET"); got != "from-env" {
		t.Fatalf("expected existing environment to win, got %q", got)
	}
}

func TestLoadEnvFilesWithoutFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	loaded, err := config.LoadEnvFiles()
	if err != nil {
		t.Fatalf("LoadEnvFiles returned error: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected no files, got %v", loaded)
	}
}
