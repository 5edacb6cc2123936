package typing

import (
	"strings"
	"unicode/utf8"
)

// KeyEvent is a raw key press as reported by the host.
type KeyEvent struct {
	Key  string
	Ctrl bool
	Alt  bool
	Meta bool
}

// ActionKind discriminates semantic actions.
type ActionKind uint8

const (
	ActionIgnore ActionKind = iota
	ActionInsertChar
	ActionInsertNewline
	ActionInsertIndentRun
	ActionBackspace
	ActionUnsupported // control key outside the allow-list; arms feedback
)

func (k ActionKind) String() string {
	switch k {
	case ActionInsertChar:
		return "insert-char"
	case ActionInsertNewline:
		return "insert-newline"
	case ActionInsertIndentRun:
		return "insert-indent"
	case ActionBackspace:
		return "backspace"
	case ActionUnsupported:
		return "unsupported"
	default:
		return "ignore"
	}
}

// Action is the result of classifying a KeyEvent.
type Action struct {
	Kind  ActionKind
	Char  rune
	Label string
	// PreventDefault tells the host to swallow the event's native behaviour.
	PreventDefault bool
}

// inserts reports whether the action tries to consume target text.
func (a Action) inserts() bool {
	switch a.Kind {
	case ActionInsertChar, ActionInsertNewline, ActionInsertIndentRun:
		return true
	}
	return false
}

const (
	keyEnter     = "Enter"
	keyTab       = "Tab"
	keyBackspace = "Backspace"
	labelSpace   = "Space"
)

// passthroughKeys are left to the host without feedback.
var passthroughKeys = map[string]struct{}{
	"ArrowUp": {}, "ArrowDown": {}, "ArrowLeft": {}, "ArrowRight": {},
	"Shift": {}, "Control": {}, "Alt": {}, "Meta": {}, "CapsLock": {}, "AltGraph": {},
	"Escape": {}, "Delete": {}, "Insert": {},
	"Home": {}, "End": {}, "PageUp": {}, "PageDown": {},
}

// InsertChar builds the action for a printable rune.
func InsertChar(r rune) Action {
	label := string(r)
	if r == ' ' {
		label = labelSpace
	}
	return Action{Kind: ActionInsertChar, Char: r, Label: label}
}

// Classify maps a raw key event to a semantic action.
func Classify(ev KeyEvent) Action {
	switch ev.Key {
	case keyEnter:
		return Action{Kind: ActionInsertNewline, Label: keyEnter, PreventDefault: true}
	case keyTab:
		return Action{Kind: ActionInsertIndentRun, Label: keyTab, PreventDefault: true}
	case keyBackspace:
		return Action{Kind: ActionBackspace, Label: keyBackspace}
	}

	// Allow-listed keys pass through whatever modifiers are held.
	if isPassthrough(ev.Key) {
		return Action{Kind: ActionIgnore, Label: ev.Key}
	}

	if !(ev.Ctrl || ev.Alt || ev.Meta) && ev.Key != "" {
		// A lone invalid byte decodes to RuneError with size 1; an encoded U+FFFD is 3 bytes.
		r, size := utf8.DecodeRuneInString(ev.Key)
		if size == len(ev.Key) && (r != utf8.RuneError || size > 1) {
			return InsertChar(r)
		}
	}

	return Action{Kind: ActionUnsupported, Label: eventLabel(ev), PreventDefault: true}
}

func isPassthrough(key string) bool {
	if _, ok := passthroughKeys[key]; ok {
		return true
	}
	return isFunctionKey(key)
}

// isFunctionKey matches F1 through F24.
func isFunctionKey(key string) bool {
	if len(key) < 2 || len(key) > 3 || key[0] != 'F' {
		return false
	}
	n := 0
	for _, c := range key[1:] {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	return n >= 1 && n <= 24
}

func eventLabel(ev KeyEvent) string {
	var parts []string
	if ev.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if ev.Alt {
		parts = append(parts, "Alt")
	}
	if ev.Meta {
		parts = append(parts, "Meta")
	}
	key := ev.Key
	switch {
	case key == " ":
		key = labelSpace
	case key == "":
		key = "?"
	}
	parts = append(parts, key)
	return strings.Join(parts, "+")
}
