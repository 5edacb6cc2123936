package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// EnvConfig holds settings read from the environment.
type EnvConfig struct {
	APIKey       string `env:"CODETYPE_API_KEY"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	BaseURL      string `env:"CODETYPE_BASE_URL"`
	Model        string `env:"CODETYPE_MODEL"`
	Provider     string `env:"CODETYPE_PROVIDER"`
	Debug        bool   `env:"CODETYPE_DEBUG"`
}

// LoadEnv loads dotenv files, if present, and parses the environment.
// Variables already set in the environment win over dotenv values.
func LoadEnv(dotenvPaths ...string) (EnvConfig, error) {
	for _, path := range dotenvPaths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return EnvConfig{}, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Key returns the first configured API key.
func (e EnvConfig) Key() string {
	for _, k := range []string{e.APIKey, e.OpenAIAPIKey, e.GeminiAPIKey} {
		if k != "" {
			return k
		}
	}
	return ""
}
