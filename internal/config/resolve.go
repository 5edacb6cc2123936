package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/codetype/internal/model"
)

// Provider names accepted in config and flags.
const (
	ProviderOpenAI = "openai"
	ProviderFile   = "file"
)

// Gemini serves an OpenAI-compatible API at this base URL.
const (
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	GeminiModel   = "gemini-2.0-flash"
)

// Resolve layers the config file and then the environment over defaults.
// CLI flags are applied on top by the caller.
func Resolve(defaults model.Config, file FileConfig, env EnvConfig) (model.Config, error) {
	cfg := defaults

	gen := file.Generator
	setString(&cfg.Provider, gen.Provider)
	setString(&cfg.Model, gen.Model)
	setString(&cfg.BaseURL, gen.BaseURL)
	setFloat(&cfg.Temperature, gen.Temperature)
	setFloat(&cfg.TopP, gen.TopP)
	setInt(&cfg.MaxTokens, gen.MaxTokens)
	setInt(&cfg.MaxRetries, gen.MaxRetries)
	setString(&cfg.PromptTemplate, gen.PromptTemplate)
	if gen.Timeout != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*gen.Timeout))
		if err != nil {
			return model.Config{}, fmt.Errorf("invalid generator.timeout: %w", err)
		}
		cfg.Timeout = d
	}

	practice := file.Practice
	if practice.FocusWeak != nil {
		cfg.FocusWeak = *practice.FocusWeak
	}
	setInt(&cfg.WeakTop, practice.WeakTop)
	setInt(&cfg.WeakWindow, practice.WeakWindow)

	setEnv(&cfg.Provider, env.Provider)
	setEnv(&cfg.Model, env.Model)
	setEnv(&cfg.BaseURL, env.BaseURL)
	setEnv(&cfg.APIKey, env.Key())
	if env.Debug {
		cfg.Debug = true
	}

	// A lone Gemini key without an explicit endpoint targets Gemini.
	if env.APIKey == "" && env.OpenAIAPIKey == "" && env.GeminiAPIKey != "" && cfg.BaseURL == "" {
		cfg.BaseURL = GeminiBaseURL
		if gen.Model == nil && env.Model == "" {
			cfg.Model = GeminiModel
		}
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	return cfg, nil
}

func setString(target, value *string) {
	if value != nil {
		*target = *value
	}
}

func setInt(target, value *int) {
	if value != nil {
		*target = *value
	}
}

func setFloat(target, value *float64) {
	if value != nil {
		*target = *value
	}
}

func setEnv(target *string, value string) {
	if value != "" {
		*target = value
	}
}
