// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Generator GeneratorConfig `toml:"generator"`
	Practice  PracticeConfig  `toml:"practice"`
}

// GeneratorConfig maps snippet generation settings.
type GeneratorConfig struct {
	Provider       *string  `toml:"provider"`
	Model          *string  `toml:"model"`
	BaseURL        *string  `toml:"base-url"`
	Temperature    *float64 `toml:"temperature"`
	TopP           *float64 `toml:"top-p"`
	MaxTokens      *int     `toml:"max-tokens"`
	MaxRetries     *int     `toml:"max-retries"`
	Timeout        *string  `toml:"timeout"`
	PromptTemplate *string  `toml:"prompt-template"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	FocusWeak  *bool `toml:"focus-weak"`
	WeakTop    *int  `toml:"weak-top"`
	WeakWindow *int  `toml:"weak-window"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
