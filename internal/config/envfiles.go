package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFiles lists the dotenv files consulted at startup, in load order.
func EnvFiles() []string {
	files := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".config", "slidenotes.env"))
	}
	return files
}

// LoadEnvFiles loads every existing file from EnvFiles into the process
// environment. Variables that are already set win over file values, and
// earlier files win over later ones. It returns the files that were read.
func LoadEnvFiles() ([]string, error) {
	var loaded []string
	for _, path := range EnvFiles() {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("load env file %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
