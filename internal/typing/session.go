// Package typing implements the incremental typing-validation engine: a
// session that only ever holds a literal prefix of its target text, the
// classifier that turns raw key events into actions, and the timer that
// clears wrong-key feedback.
package typing

import "time"

// IndentWidth is the number of spaces a single Tab press may consume.
const IndentWidth = 4

// View is a render-ready snapshot of a session.
type View struct {
	Typed string
	Next  string
	Ghost string

	Cursor    int
	Len       int
	Completed bool

	FeedbackLabel string
	FeedbackToken uint64
	Shaking       bool
}

// Progress returns the matched fraction in [0, 1].
func (v View) Progress() float64 {
	if v.Len == 0 {
		return 0
	}
	return float64(v.Cursor) / float64(v.Len)
}

type sessionOptions struct {
	delay    time.Duration
	schedule Scheduler
	now      func() time.Time
}

// Option configures a Session.
type Option func(*sessionOptions)

// WithScheduler sets how feedback expiry is scheduled.
func WithScheduler(s Scheduler) Option {
	return func(o *sessionOptions) { o.schedule = s }
}

// WithFeedbackDelay overrides FeedbackWindow.
func WithFeedbackDelay(d time.Duration) Option {
	return func(o *sessionOptions) { o.delay = d }
}

// WithClock sets the clock used to stamp feedback.
func WithClock(now func() time.Time) Option {
	return func(o *sessionOptions) { o.now = now }
}

// Session tracks how much of a target text has been typed.
// Cursor is the only typing state; the typed text is always target[:cursor].
type Session struct {
	target []rune
	cursor int
	timer  *FeedbackTimer
}

// NewSession starts a session for target.
func NewSession(target string, opts ...Option) (*Session, error) {
	runes := []rune(target)
	if len(runes) == 0 {
		return nil, ErrEmptyTarget
	}
	o := sessionOptions{delay: FeedbackWindow}
	for _, opt := range opts {
		opt(&o)
	}
	timer := NewFeedbackTimer(o.delay, o.schedule)
	if o.now != nil {
		timer.now = o.now
	}
	return &Session{target: runes, timer: timer}, nil
}

// Apply performs one action and returns the resulting view. A rejected
// keystroke is reported through the view, not as an error.
func (s *Session) Apply(a Action) (View, error) {
	if s.completed() {
		if a.inserts() {
			return s.View(), ErrSessionCompleted
		}
		return s.View(), nil
	}

	switch a.Kind {
	case ActionInsertChar:
		if s.target[s.cursor] == a.Char {
			s.advance(1)
		} else {
			s.timer.Arm(a.Label)
		}
	case ActionInsertNewline:
		if s.target[s.cursor] == '\n' {
			s.advance(1 + s.indentRunAt(s.cursor+1))
		} else {
			s.timer.Arm(keyEnter)
		}
	case ActionInsertIndentRun:
		if n := s.tabStep(); n > 0 {
			s.advance(n)
		} else {
			s.timer.Arm(keyTab)
		}
	case ActionBackspace:
		s.cursor = 0
		s.timer.Cancel()
	case ActionUnsupported:
		s.timer.Arm(a.Label)
	}
	return s.View(), nil
}

// View returns the current snapshot without mutating state.
func (s *Session) View() View {
	v := View{
		Typed:     string(s.target[:s.cursor]),
		Cursor:    s.cursor,
		Len:       len(s.target),
		Completed: s.completed(),
	}
	if !v.Completed {
		v.Next = string(s.target[s.cursor])
		v.Ghost = string(s.target[s.cursor+1:])
	}
	if fb, ok := s.timer.Current(); ok {
		v.FeedbackLabel = fb.Label
		v.FeedbackToken = fb.Token
		v.Shaking = true
	}
	return v
}

// Reset discards all state and starts over with a new target.
func (s *Session) Reset(target string) error {
	runes := []rune(target)
	if len(runes) == 0 {
		return ErrEmptyTarget
	}
	s.timer.Cancel()
	s.target = runes
	s.cursor = 0
	return nil
}

// Restart rewinds the current target to the beginning.
func (s *Session) Restart() {
	s.timer.Cancel()
	s.cursor = 0
}

// CompletedText returns the full target once the session is completed.
func (s *Session) CompletedText() (string, bool) {
	if !s.completed() {
		return "", false
	}
	return string(s.target), true
}

// ExpireFeedback clears feedback armed with token. Stale tokens are ignored.
func (s *Session) ExpireFeedback(token uint64) bool {
	return s.timer.Expire(token)
}

// OnFeedbackExpire registers a hook run when scheduled expiry clears feedback.
func (s *Session) OnFeedbackExpire(fn func(Feedback)) {
	s.timer.OnExpire(fn)
}

// Close cancels any pending feedback expiry.
func (s *Session) Close() {
	s.timer.Cancel()
}

func (s *Session) completed() bool {
	return s.cursor == len(s.target)
}

func (s *Session) advance(n int) {
	s.cursor += n
	if s.cursor > len(s.target) {
		s.cursor = len(s.target)
	}
	s.timer.Cancel()
}

// indentRunAt counts spaces and tabs starting at i.
func (s *Session) indentRunAt(i int) int {
	n := 0
	for ; i+n < len(s.target); n++ {
		if r := s.target[i+n]; r != ' ' && r != '\t' {
			break
		}
	}
	return n
}

// tabStep is how far a Tab press advances, or 0 when it does not fit the target.
func (s *Session) tabStep() int {
	if s.target[s.cursor] == '\t' {
		return 1
	}
	if s.cursor+IndentWidth > len(s.target) {
		return 0
	}
	for _, r := range s.target[s.cursor : s.cursor+IndentWidth] {
		if r != ' ' {
			return 0
		}
	}
	return IndentWidth
}
