package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// table lays out plain-text columns padded to display width.
type table struct {
	title   string
	headers []string
	rows    [][]string
	right   map[int]bool
}

func newTable(title string, headers ...string) *table {
	return &table{title: title, headers: headers, right: map[int]bool{}}
}

func (t *table) alignRight(cols ...int) *table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

// lines renders the title, header and rows followed by a blank line.
func (t *table) lines() []string {
	widths := t.columnWidths()
	out := make([]string, 0, len(t.rows)+3)
	if t.title != "" {
		out = append(out, t.title)
	}
	if len(widths) == 0 {
		return append(out, "")
	}
	if len(t.headers) > 0 {
		out = append(out, t.row(t.headers, widths))
	}
	for _, r := range t.rows {
		out = append(out, t.row(r, widths))
	}
	return append(out, "")
}

func (t *table) columnWidths() []int {
	cols := len(t.headers)
	for _, r := range t.rows {
		cols = max(cols, len(r))
	}
	widths := make([]int, cols)
	for _, r := range append([][]string{t.headers}, t.rows...) {
		for i, cell := range r {
			widths[i] = max(widths[i], displayWidth(cell))
		}
	}
	return widths
}

func (t *table) row(cells []string, widths []int) string {
	var b strings.Builder
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(padCell(cell, w, t.right[i]))
	}
	return b.String()
}

func padCell(value string, width int, rightAlign bool) string {
	padding := width - displayWidth(value)
	if padding <= 0 {
		return value
	}
	if rightAlign {
		return strings.Repeat(" ", padding) + value
	}
	return value + strings.Repeat(" ", padding)
}

func displayWidth(value string) int {
	return runewidth.StringWidth(value)
}
