// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/stats"
	"github.com/verte-zerg/codetype/internal/store"
)

const (
	tabOverview = iota
	tabRuns
	tabChars
)

const defaultWidth = 80

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea stats UI.
type Model struct {
	store *store.Store
	cfg   model.StatsConfig

	report stats.Report
	errMsg string

	tabs      []string
	activeTab int
	overview  viewport.Model
	runTable  table.Model
	charTable table.Model

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel constructs a stats UI model.
func NewModel(st *store.Store, cfg model.StatsConfig) *Model {
	m := &Model{
		store:     st,
		cfg:       cfg,
		tabs:      []string{"Overview", "Runs", "Characters"},
		overview:  viewport.New(0, 0),
		runTable:  newTable(runColumns()),
		charTable: newTable(charColumns()),
	}
	m.filterInputs = []textinput.Model{
		newFilterInput("Label: "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
		newFilterInput("Curve window: "),
	}
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderOverview()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, nil
		case "right", "l":
			m.moveTab(1)
			return m, nil
		case "=":
			m.cfg.CurveWindow = nextCurveWindow(m.cfg.CurveWindow)
			m.refreshReport()
			return m, nil
		case "-":
			m.cfg.CurveWindow = prevCurveWindow(m.cfg.CurveWindow)
			m.refreshReport()
			return m, nil
		case "/":
			return m, m.startFilter()
		}
		return m, m.updateActive(msg)
	}
	return m, nil
}

func (m *Model) updateActive(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.activeTab {
	case tabRuns:
		m.runTable, cmd = m.runTable.Update(msg)
	case tabChars:
		m.charTable, cmd = m.charTable.Update(msg)
	default:
		m.overview, cmd = m.overview.Update(msg)
	}
	return cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderTabs()+"\n"+m.renderFilterSummary(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = max(lipgloss.Height(activeNavStyle.Render("X")), 1) + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(m.height-headerHeight-footerHeight, 1)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	for _, t := range []*table.Model{&m.runTable, &m.charTable} {
		t.SetWidth(m.width)
		t.SetHeight(max(bodyHeight-1, 1))
	}
	for i := range m.filterInputs {
		m.filterInputs[i].Width = max(10, m.width-lipgloss.Width(m.filterInputs[i].Prompt)-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = (m.activeTab + delta + count) % count
	m.runTable.Blur()
	m.charTable.Blur()
	switch m.activeTab {
	case tabRuns:
		m.runTable.Focus()
	case tabChars:
		m.charTable.Focus()
	}
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.store, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.overview.SetContent("Failed to load stats.")
		return
	}
	m.errMsg = ""
	m.report = report
	m.runTable.SetRows(runRows(report.Runs))
	m.charTable.SetRows(charRows(report.CharAggsWindow))
	m.renderOverview()
}

func (m *Model) renderOverview() {
	if m.errMsg != "" {
		return
	}
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	m.overview.SetContent(renderOverview(m.report.Runs, m.cfg.CurveWindow, width))
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderFilterSummary() string {
	label := m.cfg.Label
	if label == "" {
		label = "any"
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	summary := fmt.Sprintf("Settings: label=%s  since=%s  last=%s  window=%d", label, since, last, m.cfg.CurveWindow)
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderBody() string {
	if m.filterMode {
		lines := []string{"Settings (enter to apply, esc to cancel)"}
		for _, input := range m.filterInputs {
			lines = append(lines, input.View())
		}
		if m.filterError != "" {
			lines = append(lines, errorStyle.Render(m.filterError))
		}
		return strings.Join(lines, "\n")
	}
	switch m.activeTab {
	case tabRuns:
		if len(m.report.Runs) == 0 {
			return "No runs found."
		}
		return tableMutedStyle.Render(m.runTable.View())
	case tabChars:
		if len(m.report.CharAggsWindow) == 0 {
			return "No character stats found."
		}
		return tableMutedStyle.Render(m.charTable.View())
	default:
		return m.overview.View()
	}
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	help := headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Settings: /  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func renderOverview(runs []model.RunAggregate, window, width int) string {
	if len(runs) == 0 {
		return "No runs found."
	}
	var buf bytes.Buffer
	if err := stats.RenderCurves(&buf, runs, window, width); err != nil {
		return fmt.Sprintf("Failed to render curves: %v", err)
	}
	return strings.TrimRight(renderSummaryCards(runs, width)+"\n\n"+buf.String(), "\n")
}

func renderSummaryCards(runs []model.RunAggregate, width int) string {
	var totalWPM, totalAcc float64
	var totalMs int64
	bestWPM := 0.0
	for _, r := range runs {
		wpm, _, acc := stats.RunMetrics(r.Chars, r.Rejected, r.DurationMs)
		totalWPM += wpm
		totalAcc += acc
		totalMs += r.DurationMs
		bestWPM = max(bestWPM, wpm)
	}
	count := float64(len(runs))
	cards := []string{
		metricCard("Runs", strconv.Itoa(len(runs))),
		metricCard("Time", (time.Duration(totalMs) * time.Millisecond).Round(time.Second).String()),
		metricCard("Avg WPM", fmt.Sprintf("%.1f", totalWPM/count)),
		metricCard("Best WPM", fmt.Sprintf("%.1f", bestWPM)),
		metricCard("Avg Acc", fmt.Sprintf("%.1f%%", (totalAcc/count)*100)),
	}
	if width < defaultWidth {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func newTable(columns []table.Column) table.Model {
	t := table.New(table.WithColumns(columns), table.WithHeight(1))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.Padding(0, 1).PaddingLeft(0)
	styles.Selected = styles.Cell.Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	t.SetStyles(styles)
	return t
}

func runColumns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Run", Width: 8},
		{Title: "Ended", Width: 16},
		{Title: "Label", Width: 20},
		{Title: "WPM", Width: 6},
		{Title: "Accuracy", Width: 9},
		{Title: "Resets", Width: 6},
	}
}

// runRows lists runs newest first.
func runRows(runs []model.RunAggregate) []table.Row {
	rows := make([]table.Row, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		wpm, _, acc := stats.RunMetrics(r.Chars, r.Rejected, r.DurationMs)
		short := r.RunID
		if len(short) > 8 {
			short = short[:8]
		}
		rows = append(rows, table.Row{
			strconv.FormatInt(r.ID, 10),
			short,
			r.EndedAt.Local().Format("2006-01-02 15:04"),
			truncateLine(r.Label, 20),
			fmt.Sprintf("%.1f", wpm),
			fmt.Sprintf("%.2f%%", acc*100),
			strconv.Itoa(r.Resets),
		})
	}
	return rows
}

func charColumns() []table.Column {
	return []table.Column{
		{Title: "Char", Width: 7},
		{Title: "Misses", Width: 6},
		{Title: "Accuracy", Width: 9},
		{Title: "Avg Latency (ms)", Width: 17},
		{Title: "Hits", Width: 6},
	}
}

// charRows lists characters most missed first, then the rest by hits.
func charRows(aggs []model.CharAggregate) []table.Row {
	missed := stats.TopMissedChars(aggs, 0)
	seen := make(map[string]bool, len(missed))
	order := make([]string, 0, len(aggs))
	for _, ch := range missed {
		seen[ch] = true
		order = append(order, ch)
	}
	byChar := make(map[string]model.CharAggregate, len(aggs))
	for _, agg := range aggs {
		byChar[agg.Char] = agg
		if !seen[agg.Char] {
			order = append(order, agg.Char)
		}
	}

	rows := make([]table.Row, 0, len(order))
	for _, ch := range order {
		agg := byChar[ch]
		total := agg.Correct + agg.Incorrect
		acc := 0.0
		if total > 0 {
			acc = float64(agg.Correct) / float64(total) * 100
		}
		lat := 0.0
		if agg.LatencyCount > 0 {
			lat = float64(agg.LatencySumMs) / float64(agg.LatencyCount)
		}
		rows = append(rows, table.Row{
			stats.CharLabel(agg.Char),
			strconv.Itoa(agg.Incorrect),
			fmt.Sprintf("%.2f%%", acc),
			fmt.Sprintf("%.1f", lat),
			strconv.Itoa(agg.Correct),
		})
	}
	return rows
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	return input
}

func (m *Model) startFilter() tea.Cmd {
	m.filterMode = true
	m.filterError = ""
	m.filterInputs[0].SetValue(m.cfg.Label)
	m.filterInputs[1].SetValue("")
	if m.cfg.Since != nil {
		m.filterInputs[1].SetValue(m.cfg.Since.Format("2006-01-02"))
	}
	m.filterInputs[2].SetValue("")
	if m.cfg.Last > 0 {
		m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.Last))
	}
	m.filterInputs[3].SetValue(strconv.Itoa(m.cfg.CurveWindow))
	return m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		cfg, err := parseFilter(m.filterInputs)
		if err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.cfg = cfg
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	m.filterIndex = (idx + count) % count
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func parseFilter(inputs []textinput.Model) (model.StatsConfig, error) {
	cfg := model.StatsConfig{Label: strings.TrimSpace(inputs[0].Value()), CurveWindow: 1}
	if since := strings.TrimSpace(inputs[1].Value()); since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		cfg.Since = &parsed
	}
	if last := strings.TrimSpace(inputs[2].Value()); last != "" {
		parsed, err := strconv.Atoi(last)
		if err != nil || parsed < 0 {
			return model.StatsConfig{}, fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		cfg.Last = parsed
	}
	if window := strings.TrimSpace(inputs[3].Value()); window != "" {
		parsed, err := strconv.Atoi(window)
		if err != nil || parsed < 1 {
			return model.StatsConfig{}, fmt.Errorf("invalid curve window (use integer >= 1)")
		}
		cfg.CurveWindow = parsed
	}
	return cfg, nil
}

func nextCurveWindow(n int) int {
	if n < 5 {
		return 5
	}
	return (n/5 + 1) * 5
}

func prevCurveWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		if w := lipgloss.Width(line); w < width {
			lines[i] = line + strings.Repeat(" ", width-w)
		}
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
