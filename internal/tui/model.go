// Package tui provides the Bubble Tea code typing interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/source"
	statsPkg "github.com/verte-zerg/codetype/internal/stats"
	"github.com/verte-zerg/codetype/internal/store"
	"github.com/verte-zerg/codetype/internal/typing"
)

type state int

const (
	statePrompt state = iota
	stateGenerating
	statePractice
	stateCompleted
	stateError
)

var errNoProvider = errors.New("no snippet source configured")

// Options configures a Model.
type Options struct {
	Config model.Config
	// Store keeps run history; nil disables history and the footer stats.
	Store    *store.Store
	Provider source.Provider
	Logger   *zap.SugaredLogger
	// Prompt starts generation right away when set.
	Prompt string
	// Snippets skips generation and starts practice on the first one.
	Snippets  []source.Snippet
	Clipboard func(string) error
	Now       func() time.Time
}

type snippetsMsg struct {
	seq      int
	snippets []source.Snippet
	err      error
}

// Model implements the Bubble Tea typing UI.
type Model struct {
	config    model.Config
	store     *store.Store
	provider  source.Provider
	log       *zap.SugaredLogger
	clipboard func(string) error
	now       func() time.Time

	width  int
	height int

	state   state
	input   textinput.Model
	spinner spinner.Model
	help    help.Model

	prompt   string
	snippets []source.Snippet
	current  int
	session  *typing.Session
	sched    *tickScheduler
	tracker  *runTracker

	status string
	err    error
	cancel context.CancelFunc
	genSeq int

	weakSet           map[rune]struct{}
	weakNoticePrinted bool

	lastWPM float64
	lastAcc float64
	hasLast bool

	allWPM      float64
	allAcc      float64
	allChars    int
	allRejected int
	allDuration int64
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle      = pendingStyle.Underline(true)
	shakeStyle       = incorrectStyle.Underline(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	tabStyle         = footerStyle.Padding(0, 1)
	activeTabStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true).Padding(0, 1)
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

// NewModel constructs a typing TUI model.
func NewModel(opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	input := textinput.New()
	input.Prompt = "› "
	input.Placeholder = "describe the code to practice, e.g. a Go HTTP handler with middleware"
	input.CharLimit = 500

	m := &Model{
		config:    opts.Config,
		store:     opts.Store,
		provider:  opts.Provider,
		log:       opts.Logger,
		clipboard: opts.Clipboard,
		now:       opts.Now,
		input:     input,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(currentWordStyle)),
		help:      help.New(),
		sched:     &tickScheduler{},
		tracker:   newRunTracker(opts.Now),
		weakSet:   map[rune]struct{}{},
	}
	m.loadFooterStats()
	if m.config.FocusWeak {
		m.refreshWeakSet()
	}

	switch {
	case len(opts.Snippets) > 0:
		m.prompt = opts.Prompt
		m.snippets = opts.Snippets
		m.startSnippet()
	case strings.TrimSpace(opts.Prompt) != "":
		m.prompt = strings.TrimSpace(opts.Prompt)
		m.input.SetValue(m.prompt)
		m.state = stateGenerating
	default:
		m.state = statePrompt
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	switch m.state {
	case statePrompt:
		return tea.Batch(textinput.Blink, m.input.Focus())
	case stateGenerating:
		return m.beginGeneration(m.prompt)
	default:
		return nil
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(m.contentWidth()-lipgloss.Width(m.input.Prompt)-1, 10)
		return m, nil
	case snippetsMsg:
		return m, m.handleSnippets(msg)
	case feedbackTickMsg:
		msg.tick.run()
		return m, nil
	case spinner.TickMsg:
		if m.state != stateGenerating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.stop()
			return m, tea.Quit
		}
		switch m.state {
		case statePrompt:
			return m, m.updatePrompt(msg)
		case stateGenerating:
			if key.Matches(msg, keys.Cancel) {
				m.cancelGeneration()
				cmd := m.toPrompt()
				m.status = "Generation canceled."
				return m, cmd
			}
			return m, nil
		case statePractice:
			return m, m.updatePractice(msg)
		case stateCompleted:
			return m, m.updateCompleted(msg)
		case stateError:
			return m, m.toPrompt()
		}
	}
	if m.state == statePrompt {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updatePrompt(msg tea.KeyMsg) tea.Cmd {
	if !key.Matches(msg, keys.Submit) {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		m.err = nil
		m.status = ""
		m.snippets = nil
		return nil
	}
	m.err = nil
	m.status = ""
	m.prompt = prompt
	m.state = stateGenerating
	return m.beginGeneration(prompt)
}

func (m *Model) updatePractice(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.NextSnippet):
		m.switchSnippet(1)
		return nil
	case key.Matches(msg, keys.PrevSnippet):
		m.switchSnippet(-1)
		return nil
	case key.Matches(msg, keys.NewPrompt):
		return m.toPrompt()
	}

	for _, ev := range keyEvents(msg) {
		action := typing.Classify(ev)
		before := m.session.View()
		after, err := m.session.Apply(action)
		if err != nil {
			m.log.Errorw("keystroke rejected by session", "action", action.Kind.String(), "error", err)
			break
		}
		m.tracker.record(action, before, after)
		if after.Completed {
			m.completeRun()
			break
		}
	}
	return m.sched.drain()
}

func (m *Model) updateCompleted(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Copy):
		m.copyCompleted()
	case key.Matches(msg, keys.Restart):
		m.session.Restart()
		m.tracker.reset()
		m.status = ""
		m.state = statePractice
	case key.Matches(msg, keys.New):
		return m.toPrompt()
	case key.Matches(msg, keys.Left):
		m.switchSnippet(-1)
	case key.Matches(msg, keys.Right):
		m.switchSnippet(1)
	case key.Matches(msg, keys.Done):
		m.stop()
		return tea.Quit
	}
	return nil
}

// beginGeneration runs the provider off the update loop. Results from an
// older request are dropped by sequence number.
func (m *Model) beginGeneration(prompt string) tea.Cmd {
	m.cancelGeneration()
	m.genSeq++
	seq := m.genSeq
	provider := m.generationProvider()
	if provider == nil {
		return func() tea.Msg { return snippetsMsg{seq: seq, err: errNoProvider} }
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.input.Blur()
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		snippets, err := provider.Generate(ctx, prompt)
		return snippetsMsg{seq: seq, snippets: snippets, err: err}
	})
}

func (m *Model) generationProvider() source.Provider {
	if m.provider == nil {
		return nil
	}
	if wp, ok := m.provider.(source.WeakCharsProvider); ok && m.config.FocusWeak && len(m.weakSet) > 0 {
		return wp.WithWeakChars(m.weakSet)
	}
	return m.provider
}

func (m *Model) handleSnippets(msg snippetsMsg) tea.Cmd {
	if msg.seq != m.genSeq || m.state != stateGenerating {
		return nil
	}
	m.cancelGeneration()
	if msg.err == nil && len(msg.snippets) == 0 {
		msg.err = source.ErrNoContent
	}
	if msg.err != nil {
		m.log.Errorw("generation failed", "error", msg.err)
		m.err = msg.err
		m.state = stateError
		return nil
	}
	m.snippets = msg.snippets
	m.current = 0
	m.startSnippet()
	return nil
}

func (m *Model) cancelGeneration() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) toPrompt() tea.Cmd {
	m.closeSession()
	if m.state != stateError {
		m.err = nil
	}
	m.state = statePrompt
	m.status = ""
	m.input.Reset()
	return m.input.Focus()
}

func (m *Model) startSnippet() {
	m.closeSession()
	sess, err := typing.NewSession(m.snippets[m.current].Text,
		typing.WithScheduler(m.sched.schedule),
		typing.WithClock(m.now),
	)
	if err != nil {
		m.log.Errorw("cannot start snippet", "label", m.snippets[m.current].Label, "error", err)
		m.err = err
		m.state = stateError
		return
	}
	m.session = sess
	m.tracker.reset()
	m.status = ""
	m.state = statePractice
}

func (m *Model) switchSnippet(delta int) {
	if len(m.snippets) < 2 {
		return
	}
	m.current = (m.current + delta + len(m.snippets)) % len(m.snippets)
	m.startSnippet()
}

func (m *Model) closeSession() {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
}

func (m *Model) stop() {
	m.cancelGeneration()
	m.closeSession()
}

func (m *Model) copyCompleted() {
	text, ok := m.session.CompletedText()
	if !ok {
		return
	}
	if err := m.clipboard(text); err != nil {
		m.log.Errorw("clipboard write failed", "error", err)
		m.status = "Copy failed."
		return
	}
	m.status = "Copied to clipboard."
}

func (m *Model) completeRun() {
	m.state = stateCompleted
	snippet := m.snippets[m.current]
	run, chars, ok := m.tracker.finish(snippet.Label, m.prompt, snippet.Text)
	if !ok {
		return
	}
	wpm, _, acc := statsPkg.RunMetrics(run.Chars, run.Rejected, run.DurationMs)
	m.lastWPM = wpm
	m.lastAcc = acc
	m.hasLast = true
	m.allChars += run.Chars
	m.allRejected += run.Rejected
	m.allDuration += run.DurationMs
	m.recomputeAllTime()

	if m.store == nil {
		return
	}
	id, err := m.store.InsertRun(context.Background(), run, chars)
	if err != nil {
		m.log.Errorw("failed to save run", "label", run.Label, "error", err)
		return
	}
	m.log.Infow("run saved", "id", id, "label", run.Label, "chars", run.Chars, "duration_ms", run.DurationMs)
	if m.config.FocusWeak {
		m.refreshWeakSet()
	}
}

func (m *Model) loadFooterStats() {
	if m.store == nil {
		return
	}
	runs, err := m.store.ListRuns(context.Background(), model.StatsConfig{})
	if err != nil {
		m.log.Errorw("failed to load run stats", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}
	last := runs[len(runs)-1]
	m.lastWPM, _, m.lastAcc = statsPkg.RunMetrics(last.Chars, last.Rejected, last.DurationMs)
	m.hasLast = true

	for _, r := range runs {
		m.allChars += r.Chars
		m.allRejected += r.Rejected
		m.allDuration += r.DurationMs
	}
	m.recomputeAllTime()
}

func (m *Model) recomputeAllTime() {
	m.allWPM, _, m.allAcc = statsPkg.RunMetrics(m.allChars, m.allRejected, m.allDuration)
}

func (m *Model) refreshWeakSet() {
	if m.store == nil {
		return
	}
	aggs, err := m.store.GetMissedChars(context.Background(), m.config.WeakWindow)
	if err != nil {
		m.log.Errorw("failed to load weak chars", "error", err)
		return
	}
	m.weakSet = statsPkg.SelectWeakChars(aggs, m.config.WeakTop)
	if len(m.weakSet) == 0 && !m.weakNoticePrinted {
		m.log.Infow("no stats available for weak-char focus yet; using the plain prompt")
		m.weakNoticePrinted = true
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	content := m.renderContent()
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		if footer == "" {
			return content
		}
		return content + "\n\n" + footer
	}
	footerHeight := 0
	if footer != "" {
		footerHeight = lipgloss.Height(footer)
	}
	if footerHeight == 0 || m.height <= footerHeight+1 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-footerHeight, lipgloss.Center, lipgloss.Center, content)
	footerBlock := lipgloss.Place(m.width, footerHeight, lipgloss.Center, lipgloss.Bottom, footer)
	return body + "\n" + footerBlock
}

func (m *Model) contentWidth() int {
	return max(int(float64(m.width)*0.70), 1)
}

func (m *Model) renderContent() string {
	switch m.state {
	case statePrompt:
		lines := []string{titleStyle.Render("What do you want to type?"), "", m.input.View()}
		if m.err != nil {
			lines = append(lines, "", incorrectStyle.Render(errorMessage(m.err)))
		}
		return strings.Join(lines, "\n")
	case stateGenerating:
		return fmt.Sprintf("%s Generating code for %q", m.spinner.View(), m.prompt)
	case stateError:
		return incorrectStyle.Render("Generation failed: "+errorMessage(m.err)) + "\n\n" +
			footerStyle.Render("Press any key to return to the prompt.")
	}
	if m.session == nil {
		return ""
	}
	v := m.session.View()
	if m.width == 0 {
		return wrapStyledRunes(buildStyledRunes(v), 0)
	}
	width := m.contentWidth()
	wrapped := wrapStyledRunes(buildStyledRunes(v), width)
	style := lipgloss.NewStyle().Width(width)
	if v.Shaking {
		return style.PaddingLeft(1).Render(wrapped)
	}
	return style.PaddingRight(1).Render(wrapped)
}

func (m *Model) renderFooter() string {
	var lines []string
	if m.state == statePractice || m.state == stateCompleted {
		if line := m.renderStatusLine(); line != "" {
			lines = append(lines, line)
		}
		if len(m.snippets) > 1 {
			lines = append(lines, m.renderTabs())
		}
	} else if m.status != "" {
		lines = append(lines, footerStyle.Render(m.status))
	}
	lines = append(lines, m.help.ShortHelpView(keys.bindings(m.state, len(m.snippets))))
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatusLine() string {
	if m.session == nil {
		return ""
	}
	v := m.session.View()
	var segments []string
	if m.state == stateCompleted {
		segments = append(segments, "Done")
	} else {
		segments = append(segments, fmt.Sprintf("Progress %d%%", int(v.Progress()*100)))
	}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %.1f WPM · %.1f%%", m.lastWPM, m.lastAcc*100))
	}
	if m.store != nil {
		segments = append(segments, fmt.Sprintf("All-time %.1f WPM · %.1f%%", m.allWPM, m.allAcc*100))
	}
	if m.status != "" {
		segments = append(segments, m.status)
	}
	line := footerStyle.Render(strings.Join(segments, "  "))
	if v.FeedbackLabel != "" {
		line = incorrectStyle.Render("✗ "+v.FeedbackLabel) + "  " + line
	}
	return line
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, len(m.snippets))
	for i, s := range m.snippets {
		if i == m.current {
			tabs = append(tabs, activeTabStyle.Render(s.Label))
			continue
		}
		tabs = append(tabs, tabStyle.Render(s.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func errorMessage(err error) string {
	var gerr *source.GenerationError
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
