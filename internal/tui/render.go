package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/codetype/internal/typing"
)

const tabWidth = typing.IndentWidth

type styledRune struct {
	s       string
	width   int
	isSpace bool
	newline bool
}

// buildStyledRunes styles the whole target from a session view: typed text
// bright, the caret on the next rune and the rest dim.
func buildStyledRunes(v typing.View) []styledRune {
	target := []rune(v.Typed + v.Next + v.Ghost)
	cursorIndex := -1
	if !v.Completed {
		cursorIndex = v.Cursor
	}
	currentWord := wordForCursor(findWords(target), cursorIndex)

	caret := cursorStyle
	if v.Shaking {
		caret = shakeStyle
	}

	out := make([]styledRune, 0, len(target))
	for i, r := range target {
		style := pendingStyle
		switch {
		case i < v.Cursor:
			style = correctStyle
		case i == cursorIndex:
			style = caret
		case currentWord != nil && i >= currentWord.start && i < currentWord.end:
			style = currentWordStyle
		}

		switch r {
		case '\n':
			item := styledRune{newline: true}
			if i == cursorIndex {
				item.s = style.Render("↵")
				item.width = 1
			}
			out = append(out, item)
		case '\t':
			glyph := strings.Repeat(" ", tabWidth)
			if i == cursorIndex {
				glyph = "→" + strings.Repeat(" ", tabWidth-1)
			}
			out = append(out, styledRune{s: style.Render(glyph), width: tabWidth, isSpace: true})
		default:
			out = append(out, styledRune{
				s:       style.Render(string(r)),
				width:   runewidth.RuneWidth(r),
				isSpace: r == ' ',
			})
		}
	}
	return out
}

type wordRange struct {
	start int
	end   int
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

func findWords(target []rune) []wordRange {
	words := []wordRange{}
	start := -1
	for i, r := range target {
		if isSeparator(r) {
			if start != -1 {
				words = append(words, wordRange{start: start, end: i})
				start = -1
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start != -1 {
		words = append(words, wordRange{start: start, end: len(target)})
	}
	return words
}

// wordForCursor returns the word holding the cursor, or the next one when the
// cursor sits on a separator.
func wordForCursor(words []wordRange, cursorIndex int) *wordRange {
	if cursorIndex < 0 {
		return nil
	}
	for i, w := range words {
		if cursorIndex < w.end {
			return &words[i]
		}
	}
	return nil
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapStyledRunes keeps the target's own line breaks and wraps each line to
// width, preferring to break after a space.
func wrapStyledRunes(runes []styledRune, width int) string {
	var out strings.Builder
	start := 0
	for i, item := range runes {
		if !item.newline {
			continue
		}
		out.WriteString(wrapLine(runes[start:i+1], width))
		out.WriteRune('\n')
		start = i + 1
	}
	out.WriteString(wrapLine(runes[start:], width))
	return out.String()
}

func wrapLine(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	var out strings.Builder
	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 && lastSpaceIdx < len(line)-1 {
				out.WriteString(renderStyledRunes(line[:lastSpaceIdx+1]))
				out.WriteRune('\n')
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
			} else {
				out.WriteString(renderStyledRunes(line))
				out.WriteRune('\n')
				line = line[:0]
			}
			lineWidth = lineWidthOf(line)
			lastSpaceIdx = lastSpaceIndex(line)
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
