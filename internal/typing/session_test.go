package typing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pendingFire struct {
	delay   time.Duration
	fire    func()
	stopped bool
	fired   bool
}

// manualScheduler holds callbacks until the test fires them.
type manualScheduler struct {
	pending []*pendingFire
}

func (m *manualScheduler) schedule(d time.Duration, fire func()) func() bool {
	p := &pendingFire{delay: d, fire: fire}
	m.pending = append(m.pending, p)
	return func() bool {
		was := !p.stopped && !p.fired
		p.stopped = true
		return was
	}
}

func (m *manualScheduler) live() int {
	n := 0
	for _, p := range m.pending {
		if !p.stopped && !p.fired {
			n++
		}
	}
	return n
}

// fireAll runs every callback, including stopped ones, to mimic a timer that
// already left the queue when Stop was called.
func (m *manualScheduler) fireAll(includeStopped bool) {
	for _, p := range m.pending {
		if p.fired || (p.stopped && !includeStopped) {
			continue
		}
		p.fired = true
		p.fire()
	}
}

func newTestSession(t *testing.T, target string) (*Session, *manualScheduler) {
	t.Helper()
	sched := &manualScheduler{}
	s, err := NewSession(target, WithScheduler(sched.schedule))
	require.NoError(t, err)
	return s, sched
}

func apply(t *testing.T, s *Session, a Action) View {
	t.Helper()
	v, err := s.Apply(a)
	require.NoError(t, err)
	assertInvariants(t, s, v)
	return v
}

func typeString(t *testing.T, s *Session, text string) View {
	t.Helper()
	var v View
	for _, r := range text {
		v = apply(t, s, InsertChar(r))
	}
	return v
}

func assertInvariants(t *testing.T, s *Session, v View) {
	t.Helper()
	assert.Equal(t, string(s.target[:v.Cursor]), v.Typed)
	assert.Equal(t, v.Cursor == v.Len, v.Completed)
	if v.Shaking {
		assert.False(t, v.Completed, "feedback must not be shown once complete")
	}
	assert.Equal(t, string(s.target), v.Typed+v.Next+v.Ghost)
}

func TestNewSessionRejectsEmptyTarget(t *testing.T) {
	_, err := NewSession("")
	require.ErrorIs(t, err, ErrEmptyTarget)
}

func TestPrefixInvariantUnderMixedInput(t *testing.T) {
	target := "func main() {\n\tfmt.Println(\"hi\")\n}"
	s, _ := newTestSession(t, target)

	strokes := []Action{
		InsertChar('f'), InsertChar('x'), InsertChar('u'), InsertChar('n'),
		Classify(KeyEvent{Key: "Enter"}), InsertChar('c'), Classify(KeyEvent{Key: "Tab"}),
		InsertChar(' '), InsertChar('m'), Classify(KeyEvent{Key: "ArrowLeft"}),
		Classify(KeyEvent{Key: "a", Ctrl: true}), InsertChar('a'),
	}
	prev := 0
	for _, a := range strokes {
		v := apply(t, s, a)
		assert.GreaterOrEqual(t, v.Cursor, prev, "cursor only grows without backspace")
		prev = v.Cursor
	}
	assert.Equal(t, "func ma", s.View().Typed)
}

func TestViewIsIdempotent(t *testing.T) {
	s, _ := newTestSession(t, "hello")
	typeString(t, s, "he")
	apply(t, s, InsertChar('z'))

	first := s.View()
	second := s.View()
	assert.Equal(t, first, second)
}

func TestCompletionExactness(t *testing.T) {
	s, _ := newTestSession(t, "ab")

	v := apply(t, s, InsertChar('a'))
	assert.False(t, v.Completed)

	v = apply(t, s, InsertChar('b'))
	assert.True(t, v.Completed)
	assert.Equal(t, 2, v.Cursor)
	assert.Empty(t, v.Next)
	assert.Empty(t, v.Ghost)

	before := s.View()
	after, err := s.Apply(InsertChar('c'))
	require.ErrorIs(t, err, ErrSessionCompleted)
	assert.Equal(t, before, after)
	assert.Equal(t, before, s.View())
}

func TestCompletedSessionIgnoresNonInsertActions(t *testing.T) {
	s, _ := newTestSession(t, "a")
	apply(t, s, InsertChar('a'))

	for _, a := range []Action{
		{Kind: ActionBackspace},
		{Kind: ActionIgnore},
		{Kind: ActionUnsupported, Label: "Ctrl+a"},
	} {
		v, err := s.Apply(a)
		require.NoError(t, err)
		assert.True(t, v.Completed)
		assert.False(t, v.Shaking)
	}

	for _, a := range []Action{Classify(KeyEvent{Key: "Enter"}), Classify(KeyEvent{Key: "Tab"})} {
		_, err := s.Apply(a)
		assert.ErrorIs(t, err, ErrSessionCompleted)
	}
}

func TestBackspaceResetsWholePrefix(t *testing.T) {
	for _, k := range []int{1, 3, 7} {
		s, _ := newTestSession(t, "abcdefghij")
		typeString(t, s, "abcdefghij"[:k])
		require.Equal(t, k, s.View().Cursor)

		v := apply(t, s, Classify(KeyEvent{Key: "Backspace"}))
		assert.Equal(t, 0, v.Cursor)
		assert.Empty(t, v.Typed)
		assert.Equal(t, "a", v.Next)
	}
}

func TestBackspaceClearsFeedback(t *testing.T) {
	s, sched := newTestSession(t, "abc")
	typeString(t, s, "a")
	v := apply(t, s, InsertChar('q'))
	require.True(t, v.Shaking)

	v = apply(t, s, Classify(KeyEvent{Key: "Backspace"}))
	assert.False(t, v.Shaking)
	assert.Empty(t, v.FeedbackLabel)
	assert.Zero(t, sched.live())
}

func TestEnterAutoIndents(t *testing.T) {
	s, _ := newTestSession(t, "if x:\n    pass")
	typeString(t, s, "if x:")

	v := apply(t, s, Classify(KeyEvent{Key: "Enter"}))
	assert.Equal(t, 10, v.Cursor)
	assert.Equal(t, "p", v.Next)
	assert.False(t, v.Shaking)
}

func TestEnterAutoIndentsMixedTabsAndSpaces(t *testing.T) {
	s, _ := newTestSession(t, "{\n\t  x\n}")
	typeString(t, s, "{")

	v := apply(t, s, Classify(KeyEvent{Key: "Enter"}))
	assert.Equal(t, "x", v.Next)
}

func TestEnterCanComplete(t *testing.T) {
	s, _ := newTestSession(t, "x\n  ")
	typeString(t, s, "x")

	v := apply(t, s, Classify(KeyEvent{Key: "Enter"}))
	assert.True(t, v.Completed)
}

func TestEnterRejectedOffNewline(t *testing.T) {
	s, _ := newTestSession(t, "ab\nc")
	typeString(t, s, "a")

	v := apply(t, s, Classify(KeyEvent{Key: "Enter"}))
	assert.Equal(t, 1, v.Cursor)
	assert.True(t, v.Shaking)
	assert.Equal(t, "Enter", v.FeedbackLabel)
}

func TestTabEquivalence(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantCursor int
		wantShake  bool
	}{
		{name: "literal tab", target: "\tx", wantCursor: 1},
		{name: "four spaces", target: "    x", wantCursor: 4},
		{name: "five spaces", target: "     x", wantCursor: 4},
		{name: "three spaces", target: "   x", wantCursor: 0, wantShake: true},
		{name: "three spaces at end", target: "   ", wantCursor: 0, wantShake: true},
		{name: "non whitespace", target: "abcd", wantCursor: 0, wantShake: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestSession(t, tc.target)
			v := apply(t, s, Classify(KeyEvent{Key: "Tab"}))
			assert.Equal(t, tc.wantCursor, v.Cursor)
			assert.Equal(t, tc.wantShake, v.Shaking)
			if tc.wantShake {
				assert.Equal(t, "Tab", v.FeedbackLabel)
			}
		})
	}
}

func TestFeedbackAutoClears(t *testing.T) {
	s, sched := newTestSession(t, "ab")
	v := apply(t, s, InsertChar('x'))
	require.Equal(t, "x", v.FeedbackLabel)
	require.Equal(t, 1, sched.live())
	assert.Equal(t, FeedbackWindow, sched.pending[0].delay)

	sched.fireAll(false)

	v = s.View()
	assert.False(t, v.Shaking)
	assert.Empty(t, v.FeedbackLabel)
}

func TestFeedbackClearedByCorrectKey(t *testing.T) {
	s, sched := newTestSession(t, "ab")
	apply(t, s, InsertChar('x'))

	v := apply(t, s, InsertChar('a'))
	assert.False(t, v.Shaking)
	assert.Zero(t, sched.live())
}

func TestRearmCancelsPreviousTimer(t *testing.T) {
	s, sched := newTestSession(t, "ab")
	first := apply(t, s, InsertChar('x'))
	second := apply(t, s, InsertChar('y'))

	require.NotEqual(t, first.FeedbackToken, second.FeedbackToken)
	assert.Equal(t, 1, sched.live())
	assert.Equal(t, "y", second.FeedbackLabel)

	// A stale callback that slipped past Stop must not clear the newer feedback.
	assert.False(t, s.ExpireFeedback(first.FeedbackToken))
	assert.Equal(t, "y", s.View().FeedbackLabel)

	sched.pending[0].fired = true
	sched.pending[0].fire()
	assert.Equal(t, "y", s.View().FeedbackLabel)

	assert.True(t, s.ExpireFeedback(second.FeedbackToken))
	assert.False(t, s.View().Shaking)
}

func TestSpaceFeedbackLabel(t *testing.T) {
	s, _ := newTestSession(t, "ab")
	v := apply(t, s, Classify(KeyEvent{Key: " "}))
	assert.Equal(t, "Space", v.FeedbackLabel)
}

func TestUnsupportedKeyArmsFeedback(t *testing.T) {
	s, _ := newTestSession(t, "ab")
	v := apply(t, s, Classify(KeyEvent{Key: "a", Ctrl: true}))
	assert.Equal(t, 0, v.Cursor)
	assert.True(t, v.Shaking)
	assert.Equal(t, "Ctrl+a", v.FeedbackLabel)
}

func TestPassthroughKeyLeavesStateAlone(t *testing.T) {
	s, sched := newTestSession(t, "ab")
	before := s.View()
	v := apply(t, s, Classify(KeyEvent{Key: "ArrowRight"}))
	assert.Equal(t, before, v)
	assert.Zero(t, sched.live())
}

func TestEndToEndScenario(t *testing.T) {
	s, _ := newTestSession(t, "ab")

	v := apply(t, s, InsertChar('a'))
	assert.Equal(t, 1, v.Cursor)
	assert.Empty(t, v.FeedbackLabel)

	v = apply(t, s, InsertChar('x'))
	assert.Equal(t, 1, v.Cursor)
	assert.Equal(t, "x", v.FeedbackLabel)

	v = apply(t, s, InsertChar('b'))
	assert.Equal(t, 2, v.Cursor)
	assert.True(t, v.Completed)
	assert.Empty(t, v.FeedbackLabel)
}

func TestCompletedTextOnlyWhenCompleted(t *testing.T) {
	s, _ := newTestSession(t, "ok")
	_, ok := s.CompletedText()
	assert.False(t, ok)

	typeString(t, s, "ok")
	text, ok := s.CompletedText()
	require.True(t, ok)
	assert.Equal(t, "ok", text)
}

func TestResetReplacesTarget(t *testing.T) {
	s, sched := newTestSession(t, "abc")
	typeString(t, s, "a")
	apply(t, s, InsertChar('z'))

	require.NoError(t, s.Reset("xyz"))
	v := s.View()
	assert.Equal(t, 0, v.Cursor)
	assert.Equal(t, "x", v.Next)
	assert.False(t, v.Shaking)
	assert.Zero(t, sched.live())

	require.ErrorIs(t, s.Reset(""), ErrEmptyTarget)
	assert.Equal(t, "x", s.View().Next)
}

func TestUnicodeTargetsAreIndexedByCodePoint(t *testing.T) {
	s, _ := newTestSession(t, "héllo→")
	v := typeString(t, s, "hé")
	assert.Equal(t, 2, v.Cursor)
	assert.Equal(t, "l", v.Next)

	v = typeString(t, s, "llo→")
	assert.True(t, v.Completed)
}

func TestFeedbackExpiresWithRealTimer(t *testing.T) {
	s, err := NewSession("ab", WithFeedbackDelay(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	expired := make(chan Feedback, 1)
	s.OnFeedbackExpire(func(fb Feedback) { expired <- fb })

	v, err := s.Apply(InsertChar('x'))
	require.NoError(t, err)
	require.True(t, v.Shaking)

	select {
	case fb := <-expired:
		assert.Equal(t, "x", fb.Label)
	case <-time.After(2 * time.Second):
		t.Fatal("feedback did not expire")
	}
	assert.False(t, s.View().Shaking)
}

func TestFeedbackStampUsesClock(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	sched := &manualScheduler{}
	s, err := NewSession("ab", WithScheduler(sched.schedule), WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	_, err = s.Apply(InsertChar('x'))
	require.NoError(t, err)
	fb, ok := s.timer.Current()
	require.True(t, ok)
	assert.Equal(t, at, fb.ArmedAt)
}
