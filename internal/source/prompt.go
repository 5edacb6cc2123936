package source

import (
	"sort"
	"strings"
)

// RequestPlaceholder marks where the user's request goes in a template.
const RequestPlaceholder = "{{request}}"

// DefaultTemplate is the prompt sent when no template is configured.
const DefaultTemplate = "Write a code snippet for the following request: {{request}}\n" +
	"Reply with fenced code blocks only. Put each file name after the language on the opening fence."

// PromptBuilder renders the model prompt from a request.
type PromptBuilder struct {
	Template string
	// Weak holds characters the user often misses; they are suggested to the model.
	Weak map[rune]struct{}
}

// Build renders the template. A template without the placeholder gets the
// request appended on its own line.
func (b PromptBuilder) Build(request string) string {
	tmpl := b.Template
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTemplate
	}
	var out string
	if strings.Contains(tmpl, RequestPlaceholder) {
		out = strings.ReplaceAll(tmpl, RequestPlaceholder, request)
	} else {
		out = strings.TrimRight(tmpl, "\n") + "\n" + request
	}
	if hint := weakHint(b.Weak); hint != "" {
		out += "\n" + hint
	}
	return out
}

func weakHint(weak map[rune]struct{}) string {
	if len(weak) == 0 {
		return ""
	}
	chars := make([]rune, 0, len(weak))
	for r := range weak {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })

	parts := make([]string, 0, len(chars))
	for _, r := range chars {
		switch r {
		case ' ':
			parts = append(parts, "space")
		case '\n':
			parts = append(parts, "newline")
		case '\t':
			parts = append(parts, "tab")
		default:
			parts = append(parts, string(r))
		}
	}
	return "Where it fits naturally, use these characters often: " + strings.Join(parts, " ")
}
