package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/codetype/internal/typing"
)

func TestRunTrackerCountsKeystrokes(t *testing.T) {
	sess, err := typing.NewSession("if x:\n    y\n\tz")
	require.NoError(t, err)
	defer sess.Close()
	tracker := newRunTracker(stepClock(time.Second))

	events := []typing.KeyEvent{
		{Key: "i"}, {Key: "f"}, {Key: " "}, {Key: "x"}, {Key: ":"},
		{Key: "Enter"}, // skips the four-space indent
		{Key: "y"},
		{Key: "Enter"}, // skips the tab
		{Key: "z"},
	}
	for _, ev := range events {
		a := typing.Classify(ev)
		before := sess.View()
		after, err := sess.Apply(a)
		require.NoError(t, err)
		tracker.record(a, before, after)
	}
	require.True(t, sess.View().Completed)

	run, chars, ok := tracker.finish("a.py", "", "")
	require.True(t, ok)
	assert.Equal(t, len(events), run.Chars)
	assert.Zero(t, run.Rejected)

	byChar := map[string]int{}
	for _, c := range chars {
		byChar[c.Char] = c.Correct
	}
	assert.Equal(t, 2, byChar["\n"])
}

func TestRunTrackerCountsIndentRunOnce(t *testing.T) {
	sess, err := typing.NewSession("    a")
	require.NoError(t, err)
	defer sess.Close()
	tracker := newRunTracker(stepClock(time.Second))

	for _, ev := range []typing.KeyEvent{{Key: "Tab"}, {Key: "a"}} {
		a := typing.Classify(ev)
		before := sess.View()
		after, err := sess.Apply(a)
		require.NoError(t, err)
		tracker.record(a, before, after)
	}

	run, _, ok := tracker.finish("a", "", "")
	require.True(t, ok)
	assert.Equal(t, 2, run.Chars)
}
