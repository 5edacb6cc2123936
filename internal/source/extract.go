package source

import (
	"fmt"
	"path"
	"strings"
)

const fence = "```"

var extByLang = map[string]string{
	"bash":       "sh",
	"c":          "c",
	"cpp":        "cpp",
	"c++":        "cpp",
	"csharp":     "cs",
	"cs":         "cs",
	"css":        "css",
	"go":         "go",
	"golang":     "go",
	"html":       "html",
	"java":       "java",
	"javascript": "js",
	"js":         "js",
	"json":       "json",
	"jsx":        "jsx",
	"kotlin":     "kt",
	"lua":        "lua",
	"php":        "php",
	"python":     "py",
	"py":         "py",
	"ruby":       "rb",
	"rust":       "rs",
	"shell":      "sh",
	"sh":         "sh",
	"sql":        "sql",
	"swift":      "swift",
	"toml":       "toml",
	"ts":         "ts",
	"tsx":        "tsx",
	"typescript": "ts",
	"yaml":       "yaml",
	"yml":        "yaml",
	"zig":        "zig",
}

// Extract splits a model response into snippets. Fenced code blocks become one
// snippet each; a response without fences is a single snippet.
func Extract(raw string) ([]Snippet, error) {
	lines := strings.Split(Normalize(raw), "\n")

	var snippets []Snippet
	sawFence := false
	for i := 0; i < len(lines); i++ {
		info, ok := openingFence(lines[i])
		if !ok {
			continue
		}
		sawFence = true
		start := i + 1
		end := start
		for end < len(lines) && strings.TrimSpace(lines[end]) != fence {
			end++
		}
		body := strings.TrimRight(strings.Join(lines[start:end], "\n"), "\n")
		if strings.TrimSpace(body) != "" {
			label := blockLabel(info, precedingLine(lines, i), len(snippets)+1)
			snippets = append(snippets, Snippet{Label: label, Text: body})
		}
		i = end
	}

	if !sawFence {
		body := strings.Trim(strings.Join(lines, "\n"), "\n")
		if strings.TrimSpace(body) != "" {
			snippets = append(snippets, Snippet{Label: "snippet.txt", Text: body})
		}
	}
	if len(snippets) == 0 {
		return nil, ErrNoContent
	}
	return snippets, nil
}

// Normalize converts line endings to LF and strips trailing blanks from each
// line, since they cannot be seen while typing.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func openingFence(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, fence) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimLeft(trimmed, "`")), true
}

func precedingLine(lines []string, i int) string {
	for j := i - 1; j >= 0; j-- {
		if s := strings.TrimSpace(lines[j]); s != "" {
			return s
		}
	}
	return ""
}

func blockLabel(info, before string, n int) string {
	fields := strings.Fields(info)
	lang := ""
	if len(fields) > 0 {
		lang = strings.ToLower(fields[0])
		if name, ok := fileName(fields[0]); ok {
			return name
		}
	}
	for _, f := range fields[min(1, len(fields)):] {
		f = strings.TrimPrefix(f, "title=")
		if name, ok := fileName(strings.Trim(f, `"'`)); ok {
			return name
		}
	}
	if name, ok := fileName(cleanHeading(before)); ok {
		return name
	}
	if idx := strings.IndexByte(lang, ':'); idx >= 0 {
		lang = lang[:idx]
	}
	ext, ok := extByLang[lang]
	if !ok {
		ext = lang
	}
	if ext == "" {
		ext = "txt"
	}
	return fmt.Sprintf("snippet-%d.%s", n, ext)
}

// cleanHeading strips markdown decoration from a line such as "### `main.go`:".
func cleanHeading(line string) string {
	line = strings.TrimLeft(line, "#*-> ")
	line = strings.TrimSpace(line)
	for _, prefix := range []string{"File:", "file:", "Filename:", "filename:"} {
		line = strings.TrimSpace(strings.TrimPrefix(line, prefix))
	}
	line = strings.TrimRight(line, ":")
	return strings.Trim(line, "*`_\"' ")
}

// fileName accepts a lang:path info string or a bare path with an extension.
func fileName(s string) (string, bool) {
	if idx := strings.IndexByte(s, ':'); idx > 0 {
		s = s[idx+1:]
	}
	if s == "" || strings.ContainsAny(s, " \t`") {
		return "", false
	}
	base := path.Base(s)
	ext := path.Ext(base)
	if len(ext) < 2 || ext == base || len(ext) > 8 {
		return "", false
	}
	return s, true
}
