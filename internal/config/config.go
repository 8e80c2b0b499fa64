// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"snap/shared/utils"

	"gopkg.in/yaml.v3"
)

// Settings tunes the tool itself. Everything here is optional; a repository
// without settings.yaml runs on Default().
type Settings struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	Cache struct {
		Enabled bool `yaml:"enabled"`
		Size    int  `yaml:"size"` // LRU entries held in memory
	} `yaml:"cache"`

	Archive struct {
		Level int `yaml:"level"` // zstd level, 1 (fastest) to 4 (best)
	} `yaml:"archive"`
}

func Default() *Settings {
	s := &Settings{LogLevel: "warn"}
	s.Cache.Enabled = true
	s.Cache.Size = 1024
	s.Archive.Level = 2
	return s
}

// Load reads settings from path, layering them over Default(). A missing
// file is not an error. SNAP_LOG_LEVEL overrides the file.
func Load(path string) (*Settings, error) {
	settings := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading settings: %w", err)
	default:
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parsing settings %s: %w", path, err)
		}
	}

	if level := os.Getenv("SNAP_LOG_LEVEL"); level != "" {
		settings.LogLevel = level
	}
	if settings.Cache.Size <= 0 {
		settings.Cache.Size = Default().Cache.Size
	}
	if settings.Archive.Level < 1 || settings.Archive.Level > 4 {
		return nil, fmt.Errorf("archive level %d out of range 1-4", settings.Archive.Level)
	}

	return settings, nil
}

// ReadAuthor returns the author line stored in the config file. An unset
// author is returned as "" and is not an error.
func ReadAuthor(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading config: %w", err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimRight(line, "\r"), nil
}

// WriteAuthor replaces the author line. Callers validate name first.
func WriteAuthor(path, name string) error {
	if err := utils.WriteFileAtomic(path, []byte(name+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
