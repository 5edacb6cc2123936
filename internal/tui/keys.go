package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/codetype/internal/typing"
)

// namedKeys maps Bubble Tea key names to the names the classifier expects.
var namedKeys = map[string]string{
	"enter":     "Enter",
	"tab":       "Tab",
	"shift+tab": "Tab",
	"backspace": "Backspace",
	"ctrl+h":    "Backspace",
	"esc":       "Escape",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	"home":      "Home",
	"end":       "End",
	"pgup":      "PageUp",
	"pgdown":    "PageDown",
	"delete":    "Delete",
	"insert":    "Insert",
	" ":         " ",
}

// keyEvents translates a terminal key message into classifier input. Rune
// messages may carry several characters when keys arrive in one read.
func keyEvents(msg tea.KeyMsg) []typing.KeyEvent {
	if msg.Type == tea.KeyRunes {
		if msg.Paste {
			return []typing.KeyEvent{{Key: "Paste"}}
		}
		events := make([]typing.KeyEvent, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			events = append(events, typing.KeyEvent{Key: string(r), Alt: msg.Alt})
		}
		return events
	}
	return []typing.KeyEvent{namedEvent(msg)}
}

func namedEvent(msg tea.KeyMsg) typing.KeyEvent {
	name := strings.TrimPrefix(msg.String(), "alt+")
	ev := typing.KeyEvent{Alt: msg.Alt}
	if mapped, ok := namedKeys[name]; ok {
		ev.Key = mapped
		return ev
	}
	if rest, ok := strings.CutPrefix(name, "ctrl+"); ok {
		ev.Ctrl = true
		name = rest
	}
	name = strings.TrimPrefix(name, "shift+")
	if mapped, ok := namedKeys[name]; ok {
		ev.Key = mapped
		return ev
	}
	if len(name) > 1 && name[0] == 'f' {
		ev.Key = "F" + name[1:]
		return ev
	}
	ev.Key = name
	return ev
}

type keyMap struct {
	Quit        key.Binding
	NextSnippet key.Binding
	PrevSnippet key.Binding
	NewPrompt   key.Binding
	Submit      key.Binding
	Cancel      key.Binding
	Copy        key.Binding
	Restart     key.Binding
	New         key.Binding
	Left        key.Binding
	Right       key.Binding
	Done        key.Binding
}

var keys = keyMap{
	Quit:        key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	NextSnippet: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "next file")),
	PrevSnippet: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "prev file")),
	NewPrompt:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "new prompt")),
	Submit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "generate")),
	Cancel:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Copy:        key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy")),
	Restart:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	New:         key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new prompt")),
	Left:        key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "prev file")),
	Right:       key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "next file")),
	Done:        key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
}

func (k keyMap) bindings(s state, snippets int) []key.Binding {
	switch s {
	case statePrompt:
		return []key.Binding{k.Submit, k.Quit}
	case stateGenerating:
		return []key.Binding{k.Cancel, k.Quit}
	case statePractice:
		if snippets > 1 {
			return []key.Binding{k.NextSnippet, k.PrevSnippet, k.NewPrompt, k.Quit}
		}
		return []key.Binding{k.NewPrompt, k.Quit}
	case stateCompleted:
		if snippets > 1 {
			return []key.Binding{k.Copy, k.Restart, k.New, k.Left, k.Right, k.Done}
		}
		return []key.Binding{k.Copy, k.Restart, k.New, k.Done}
	default:
		return []key.Binding{k.Quit}
	}
}
