// Package source produces practice snippets from a generative model or from
// local files.
package source

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoContent is returned when a response or file set holds nothing to type.
var ErrNoContent = errors.New("no content to practice")

// Snippet is one practice text with the label shown on its tab.
type Snippet struct {
	Label string
	Text  string
}

// Provider turns a prompt into an ordered list of snippets.
type Provider interface {
	Generate(ctx context.Context, prompt string) ([]Snippet, error)
}

// WeakCharsProvider is a Provider that can steer generated code toward
// characters the user often misses.
type WeakCharsProvider interface {
	Provider
	WithWeakChars(weak map[rune]struct{}) Provider
}

// GenerationError is the single failure surfaced to the user when snippets
// could not be produced.
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func generationError(err error, format string, args ...any) *GenerationError {
	return &GenerationError{Message: fmt.Sprintf(format, args...), Err: err}
}
