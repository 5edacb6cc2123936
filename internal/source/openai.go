package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// Default request parameters for snippet generation.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.9
	DefaultTopP        = 1.0
	DefaultMaxTokens   = 2048
	DefaultTimeout     = 60 * time.Second
)

// ErrMissingAPIKey is returned when no API key was configured.
var ErrMissingAPIKey = errors.New("missing API key: set CODETYPE_API_KEY or OPENAI_API_KEY")

// OpenAIConfig holds the request settings for OpenAIProvider.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int64
	Timeout     time.Duration
	MaxRetries  int
}

// OpenAIProvider generates snippets through a Chat Completions endpoint.
// Any OpenAI-compatible server works when BaseURL points at it.
type OpenAIProvider struct {
	client  openai.Client
	cfg     OpenAIConfig
	builder PromptBuilder
	log     *zap.SugaredLogger
}

// NewOpenAIProvider builds a provider; zero config values take the defaults.
func NewOpenAIProvider(cfg OpenAIConfig, builder PromptBuilder, log *zap.SugaredLogger) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.TopP <= 0 {
		cfg.TopP = DefaultTopP
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIProvider{
		client:  openai.NewClient(opts...),
		cfg:     cfg,
		builder: builder,
		log:     log,
	}, nil
}

// WithWeakChars returns a copy of p whose prompts ask for more of weak.
func (p *OpenAIProvider) WithWeakChars(weak map[rune]struct{}) Provider {
	cp := *p
	cp.builder.Weak = weak
	return &cp
}

// Generate asks the model for code matching prompt and extracts the snippets.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) ([]Snippet, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, generationError(ErrNoContent, "prompt is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	started := time.Now()
	p.log.Infow("generation request", "model", p.cfg.Model, "prompt_len", len(prompt))

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(p.builder.Build(prompt)),
		},
		Temperature: openai.Float(p.cfg.Temperature),
		TopP:        openai.Float(p.cfg.TopP),
		MaxTokens:   openai.Int(p.cfg.MaxTokens),
	})
	if err != nil {
		gerr := requestError(err)
		p.log.Errorw("generation failed", "model", p.cfg.Model, "error", err)
		return nil, gerr
	}

	if len(resp.Choices) == 0 {
		p.log.Errorw("generation returned no choices", "model", p.cfg.Model)
		return nil, generationError(ErrNoContent, "model returned no content")
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		p.log.Errorw("generation refused", "model", p.cfg.Model, "refusal", msg.Refusal)
		return nil, generationError(nil, "model refused the request: %s", msg.Refusal)
	}

	snippets, err := Extract(msg.Content)
	if err != nil {
		p.log.Errorw("generation returned no content", "model", p.cfg.Model, "finish_reason", resp.Choices[0].FinishReason)
		return nil, generationError(err, "model returned no content")
	}
	p.log.Infow("generation done",
		"model", p.cfg.Model,
		"snippets", len(snippets),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return snippets, nil
}

func requestError(err error) *GenerationError {
	var apiErr *openai.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return generationError(err, "request timed out")
	case errors.Is(err, context.Canceled):
		return generationError(err, "request canceled")
	case errors.As(err, &apiErr):
		return generationError(err, "model endpoint returned status %d", apiErr.StatusCode)
	default:
		return generationError(err, "request failed")
	}
}
