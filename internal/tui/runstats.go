package tui

import (
	"time"

	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/typing"
)

type charStat struct {
	correct      int
	incorrect    int
	latencySumMs int64
	latencyCount int64
}

// runTracker accumulates keystroke stats for one pass over a snippet.
type runTracker struct {
	now func() time.Time

	started       bool
	startedAt     time.Time
	prevCorrectAt time.Time

	chars     int
	rejected  int
	resets    int
	charStats map[rune]*charStat
}

func newRunTracker(now func() time.Time) *runTracker {
	if now == nil {
		now = time.Now
	}
	t := &runTracker{now: now}
	t.reset()
	return t
}

func (t *runTracker) reset() {
	t.started = false
	t.startedAt = time.Time{}
	t.prevCorrectAt = time.Time{}
	t.chars = 0
	t.rejected = 0
	t.resets = 0
	t.charStats = map[rune]*charStat{}
}

// record updates the stats for an applied action given the views before and
// after it. Misses are charged to the character that was next.
func (t *runTracker) record(a typing.Action, before, after typing.View) {
	switch a.Kind {
	case typing.ActionInsertChar, typing.ActionInsertNewline, typing.ActionInsertIndentRun:
	case typing.ActionBackspace:
		if before.Cursor > 0 {
			t.resets++
		}
		return
	case typing.ActionUnsupported:
		if t.started {
			t.reject(before)
		}
		return
	default:
		return
	}

	if !t.started {
		t.started = true
		t.startedAt = t.now()
	}
	if after.Cursor <= before.Cursor {
		t.reject(before)
		return
	}
	// One accepted keystroke, however far it moved the cursor.
	t.chars++
	now := t.now()
	entry := t.entry(before.Next)
	entry.correct++
	if !t.prevCorrectAt.IsZero() {
		entry.latencySumMs += now.Sub(t.prevCorrectAt).Milliseconds()
		entry.latencyCount++
	}
	t.prevCorrectAt = now
}

func (t *runTracker) reject(before typing.View) {
	t.rejected++
	if before.Next != "" {
		t.entry(before.Next).incorrect++
	}
}

func (t *runTracker) entry(next string) *charStat {
	r := []rune(next)[0]
	e, ok := t.charStats[r]
	if !ok {
		e = &charStat{}
		t.charStats[r] = e
	}
	return e
}

// finish builds the run record for a completed snippet.
func (t *runTracker) finish(label, prompt, snippet string) (model.RunStats, []model.CharStats, bool) {
	if !t.started {
		return model.RunStats{}, nil, false
	}
	endedAt := t.now()
	run := model.RunStats{
		StartedAt:  t.startedAt,
		EndedAt:    endedAt,
		Label:      label,
		Prompt:     prompt,
		Snippet:    snippet,
		Chars:      t.chars,
		Rejected:   t.rejected,
		Resets:     t.resets,
		DurationMs: endedAt.Sub(t.startedAt).Milliseconds(),
	}
	chars := make([]model.CharStats, 0, len(t.charStats))
	for ch, e := range t.charStats {
		chars = append(chars, model.CharStats{
			Char:         string(ch),
			Correct:      e.correct,
			Incorrect:    e.incorrect,
			LatencySumMs: e.latencySumMs,
			LatencyCount: e.latencyCount,
		})
	}
	return run, chars, true
}
