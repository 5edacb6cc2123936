package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/source"
	"github.com/verte-zerg/codetype/internal/store"
)

type fakeProvider struct {
	snippets []source.Snippet
	err      error
	prompts  []string
	weak     map[rune]struct{}
}

func (p *fakeProvider) Generate(_ context.Context, prompt string) ([]source.Snippet, error) {
	p.prompts = append(p.prompts, prompt)
	return p.snippets, p.err
}

func (p *fakeProvider) WithWeakChars(weak map[rune]struct{}) source.Provider {
	p.weak = weak
	return p
}

func runesKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyOf(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func send(m *Model, msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

// collectMsgs runs cmd and flattens batches. Only use it on commands that
// return immediately or on short timers.
func collectMsgs(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collectMsgs(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func snippetsResult(t *testing.T, cmd tea.Cmd) snippetsMsg {
	t.Helper()
	for _, msg := range collectMsgs(cmd) {
		if res, ok := msg.(snippetsMsg); ok {
			return res
		}
	}
	t.Fatalf("no snippets message produced")
	return snippetsMsg{}
}

func stepClock(step time.Duration) func() time.Time {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "codetype.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPromptSubmitGeneratesSnippets(t *testing.T) {
	fp := &fakeProvider{snippets: []source.Snippet{{Label: "main.go", Text: "package main"}}}
	m := NewModel(Options{Provider: fp})
	m.Init()
	require.Equal(t, statePrompt, m.state)

	send(m, runesKey("http handler"))
	cmd := send(m, keyOf(tea.KeyEnter))
	assert.Equal(t, stateGenerating, m.state)
	assert.Contains(t, m.View(), "Generating code for \"http handler\"")

	send(m, snippetsResult(t, cmd))
	assert.Equal(t, statePractice, m.state)
	assert.Equal(t, []string{"http handler"}, fp.prompts)
	assert.Equal(t, "p", m.session.View().Next)
}

func TestStartWithPrompt(t *testing.T) {
	fp := &fakeProvider{snippets: []source.Snippet{{Label: "a.py", Text: "pass"}}}
	m := NewModel(Options{Provider: fp, Prompt: "  loops "})
	require.Equal(t, stateGenerating, m.state)

	send(m, snippetsResult(t, m.Init()))
	assert.Equal(t, statePractice, m.state)
	assert.Equal(t, []string{"loops"}, fp.prompts)
}

func TestEmptySubmitClearsError(t *testing.T) {
	fp := &fakeProvider{err: &source.GenerationError{Message: "request timed out", Err: context.DeadlineExceeded}}
	m := NewModel(Options{Provider: fp})
	m.Init()

	send(m, runesKey("x"))
	send(m, snippetsResult(t, send(m, keyOf(tea.KeyEnter))))
	require.Equal(t, stateError, m.state)
	assert.Contains(t, m.View(), "Generation failed: request timed out")

	send(m, runesKey("z"))
	require.Equal(t, statePrompt, m.state)
	assert.Contains(t, m.View(), "request timed out", "the error stays visible on the prompt")

	send(m, keyOf(tea.KeyEnter))
	assert.Equal(t, statePrompt, m.state)
	assert.NoError(t, m.err)
	assert.NotContains(t, m.View(), "request timed out")
	assert.Len(t, fp.prompts, 1)
}

func TestMissingProviderFails(t *testing.T) {
	m := NewModel(Options{})
	m.Init()
	send(m, runesKey("x"))
	send(m, snippetsResult(t, send(m, keyOf(tea.KeyEnter))))

	assert.Equal(t, stateError, m.state)
	assert.ErrorIs(t, m.err, errNoProvider)
}

func TestEmptyGenerationResultFails(t *testing.T) {
	m := NewModel(Options{Provider: &fakeProvider{}, Prompt: "x"})
	send(m, snippetsResult(t, m.Init()))

	assert.Equal(t, stateError, m.state)
	assert.ErrorIs(t, m.err, source.ErrNoContent)
	assert.Nil(t, m.session)
}

func TestModifiedNavigationKeepsProgress(t *testing.T) {
	m := NewModel(Options{Snippets: []source.Snippet{{Label: "a", Text: "abc"}}})
	send(m, runesKey("a"))
	send(m, keyOf(tea.KeyCtrlLeft), keyOf(tea.KeyCtrlHome), keyOf(tea.KeyShiftRight))

	v := m.session.View()
	assert.Equal(t, 1, v.Cursor)
	assert.False(t, v.Shaking)
	assert.Equal(t, 0, m.tracker.rejected)
}

func TestStaleGenerationResultsDropped(t *testing.T) {
	fp := &fakeProvider{snippets: []source.Snippet{{Label: "a", Text: "a"}}}
	m := NewModel(Options{Provider: fp})
	m.Init()
	send(m, runesKey("first"))
	first := send(m, keyOf(tea.KeyEnter))

	send(m, keyOf(tea.KeyEsc))
	require.Equal(t, statePrompt, m.state)
	assert.Nil(t, m.cancel)
	assert.Contains(t, m.View(), "Generation canceled.")

	send(m, snippetsResult(t, first))
	assert.Equal(t, statePrompt, m.state, "a canceled request cannot start practice")

	send(m, runesKey("second"))
	send(m, keyOf(tea.KeyEnter))
	send(m, snippetsMsg{seq: m.genSeq - 1, snippets: fp.snippets})
	assert.Equal(t, stateGenerating, m.state, "an older request cannot win")
}

func TestPracticeRunSaved(t *testing.T) {
	st := openStore(t)
	m := NewModel(Options{
		Store:    st,
		Prompt:   "tiny",
		Snippets: []source.Snippet{{Label: "main.go", Text: "ab"}},
		Now:      stepClock(time.Second),
	})
	require.Equal(t, statePractice, m.state)

	send(m, runesKey("a"), runesKey("x"))
	assert.True(t, m.session.View().Shaking)
	send(m, runesKey("b"))
	require.Equal(t, stateCompleted, m.state)
	assert.True(t, m.hasLast)
	assert.Contains(t, m.View(), "Done")

	ctx := context.Background()
	runs, err := st.ListRuns(ctx, model.StatsConfig{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "main.go", runs[0].Label)
	assert.Equal(t, 2, runs[0].Chars)
	assert.Equal(t, 1, runs[0].Rejected)
	assert.Positive(t, runs[0].DurationMs)

	run, err := st.GetRun(ctx, strconv.FormatInt(runs[0].ID, 10))
	require.NoError(t, err)
	assert.Equal(t, "tiny", run.Prompt)
	assert.Equal(t, "ab", run.Snippet)

	aggs, err := st.ListCharAggregatesForRuns(ctx, []int64{runs[0].ID})
	require.NoError(t, err)
	byChar := map[string]model.CharAggregate{}
	for _, a := range aggs {
		byChar[a.Char] = a
	}
	assert.Equal(t, 1, byChar["b"].Correct)
	assert.Equal(t, 1, byChar["b"].Incorrect)
	assert.Equal(t, 0, byChar["a"].Incorrect)
}

func TestBackspaceCountsReset(t *testing.T) {
	m := NewModel(Options{Snippets: []source.Snippet{{Label: "a", Text: "abc"}}})
	send(m, runesKey("ab"), keyOf(tea.KeyBackspace))

	assert.Equal(t, 0, m.session.View().Cursor)
	assert.Equal(t, 1, m.tracker.resets)
	assert.Equal(t, 2, m.tracker.chars)
}

func TestFeedbackTickClearsShake(t *testing.T) {
	m := NewModel(Options{Snippets: []source.Snippet{{Label: "a", Text: "ab"}}})
	cmd := send(m, runesKey("x"))
	require.NotNil(t, cmd)
	require.True(t, m.session.View().Shaking)

	for _, msg := range collectMsgs(cmd) {
		send(m, msg)
	}
	v := m.session.View()
	assert.False(t, v.Shaking)
	assert.Empty(t, v.FeedbackLabel)
}

func TestCompletedActions(t *testing.T) {
	var copied string
	clipErr := error(nil)
	m := NewModel(Options{
		Snippets: []source.Snippet{{Label: "a", Text: "ab"}},
		Clipboard: func(s string) error {
			copied = s
			return clipErr
		},
	})
	send(m, runesKey("ab"))
	require.Equal(t, stateCompleted, m.state)

	send(m, runesKey("z"))
	assert.Equal(t, stateCompleted, m.state, "typing after completion does nothing")

	send(m, runesKey("c"))
	assert.Equal(t, "ab", copied)
	assert.Equal(t, "Copied to clipboard.", m.status)

	clipErr = errors.New("no display")
	send(m, runesKey("c"))
	assert.Equal(t, "Copy failed.", m.status)

	send(m, runesKey("r"))
	require.Equal(t, statePractice, m.state)
	assert.Equal(t, 0, m.session.View().Cursor)
	assert.Empty(t, m.status)

	send(m, runesKey("ab"))
	require.Equal(t, stateCompleted, m.state)
	send(m, runesKey("n"))
	assert.Equal(t, statePrompt, m.state)
	assert.Nil(t, m.session)
}

func TestCompletedQuit(t *testing.T) {
	m := NewModel(Options{Snippets: []source.Snippet{{Label: "a", Text: "a"}}})
	send(m, runesKey("a"))
	cmd := send(m, runesKey("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestSnippetSwitching(t *testing.T) {
	m := NewModel(Options{Snippets: []source.Snippet{
		{Label: "a.go", Text: "abc"},
		{Label: "b.go", Text: "xyz"},
	}})
	send(m, runesKey("ab"))

	send(m, keyOf(tea.KeyCtrlN))
	assert.Equal(t, 1, m.current)
	assert.Equal(t, "x", m.session.View().Next)
	assert.Equal(t, 0, m.tracker.chars)

	send(m, keyOf(tea.KeyCtrlN))
	assert.Equal(t, 0, m.current)
	send(m, keyOf(tea.KeyCtrlP))
	assert.Equal(t, 1, m.current)

	send(m, keyOf(tea.KeyCtrlR))
	assert.Equal(t, statePrompt, m.state)
}

func TestHostShortcutsNotClassified(t *testing.T) {
	m := NewModel(Options{Snippets: []source.Snippet{{Label: "a", Text: "ab"}}})
	send(m, keyOf(tea.KeyCtrlN))

	assert.False(t, m.session.View().Shaking, "a host shortcut never arms feedback")
	assert.Equal(t, 0, m.current)
}

func TestQuitCancelsGeneration(t *testing.T) {
	fp := &fakeProvider{}
	m := NewModel(Options{Provider: fp, Prompt: "x"})
	m.Init()
	require.NotNil(t, m.cancel)

	cmd := send(m, keyOf(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Nil(t, m.cancel)
}

func TestFocusWeakSteersPrompt(t *testing.T) {
	st := openStore(t)
	_, err := st.InsertRun(context.Background(), model.RunStats{
		StartedAt: time.Now().Add(-time.Minute),
		EndedAt:   time.Now(),
		Label:     "a.go",
		Snippet:   "{}",
		Chars:     2,
	}, []model.CharStats{
		{Char: "{", Correct: 1, Incorrect: 3},
		{Char: "}", Correct: 1},
	})
	require.NoError(t, err)

	fp := &fakeProvider{snippets: []source.Snippet{{Label: "a", Text: "a"}}}
	cfg := model.Config{FocusWeak: true, WeakTop: 5, WeakWindow: 10}
	m := NewModel(Options{Config: cfg, Store: st, Provider: fp, Prompt: "braces"})
	send(m, snippetsResult(t, m.Init()))

	assert.Equal(t, map[rune]struct{}{'{': {}}, fp.weak)
}
