package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileProviderReadsInOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a\r\n")
	empty := writeFile(t, dir, "empty.txt", "\n\n")
	b := writeFile(t, dir, "b.py", "\n\nprint(1)   \n")

	got, err := FileProvider{Paths: []string{a, empty, b}}.Generate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []Snippet{
		{Label: "a.go", Text: "package a"},
		{Label: "b.py", Text: "print(1)"},
	}, got)
}

func TestFileProviderUsesPromptPaths(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "one")
	b := writeFile(t, dir, "b.txt", "two")

	got, err := FileProvider{}.Generate(context.Background(), a+" "+b)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[1].Text)
}

func TestFileProviderErrors(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.txt", "   ")
	big := writeFile(t, dir, "big.txt", strings.Repeat("x", MaxFileBytes+1))

	tests := []struct {
		name  string
		paths []string
		msg   string
	}{
		{name: "none", paths: nil, msg: "no files given"},
		{name: "missing", paths: []string{filepath.Join(dir, "nope.go")}, msg: "failed to read"},
		{name: "directory", paths: []string{dir}, msg: "is a directory"},
		{name: "too large", paths: []string{big}, msg: "larger than 64 KiB"},
		{name: "empty", paths: []string{empty}, msg: "empty.txt is empty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FileProvider{Paths: tc.paths}.Generate(context.Background(), "")
			var gerr *GenerationError
			require.ErrorAs(t, err, &gerr)
			assert.Contains(t, gerr.Error(), tc.msg)
		})
	}
}

func TestFileProviderCanceled(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "one")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FileProvider{Paths: []string{a}}.Generate(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
}
