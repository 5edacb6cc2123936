package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileBytes caps how much of a local file is offered for practice.
const MaxFileBytes = 64 << 10

// FileProvider serves local files as snippets. The prompt is read as a
// whitespace separated list of paths when Paths is empty.
type FileProvider struct {
	Paths []string
}

// Generate reads each path in order. Empty files are skipped.
func (p FileProvider) Generate(ctx context.Context, prompt string) ([]Snippet, error) {
	paths := p.Paths
	if len(paths) == 0 {
		paths = strings.Fields(prompt)
	}
	if len(paths) == 0 {
		return nil, generationError(ErrNoContent, "no files given")
	}

	snippets := make([]Snippet, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, generationError(err, "reading files canceled")
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, generationError(err, "failed to read %s", path)
		}
		if info.IsDir() {
			return nil, generationError(nil, "%s is a directory", path)
		}
		if info.Size() > MaxFileBytes {
			return nil, generationError(nil, "%s is larger than %d KiB", path, MaxFileBytes>>10)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, generationError(err, "failed to read %s", path)
		}
		text := strings.Trim(Normalize(string(data)), "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		snippets = append(snippets, Snippet{Label: filepath.Base(path), Text: text})
	}
	if len(snippets) == 0 {
		return nil, generationError(ErrNoContent, "%s", emptyFilesMessage(paths))
	}
	return snippets, nil
}

func emptyFilesMessage(paths []string) string {
	if len(paths) == 1 {
		return fmt.Sprintf("%s is empty", paths[0])
	}
	return "all files are empty"
}
