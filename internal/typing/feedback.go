package typing

import (
	"sync"
	"time"
)

// FeedbackWindow is how long wrong-key feedback stays visible.
const FeedbackWindow = 500 * time.Millisecond

// Feedback is the transient wrong-key indicator.
type Feedback struct {
	Label   string
	ArmedAt time.Time
	Token   uint64
}

// Scheduler runs fire once after d. The returned stop func prevents a pending
// run and reports whether it was still pending.
type Scheduler func(d time.Duration, fire func()) (stop func() bool)

// AfterFunc schedules with time.AfterFunc.
func AfterFunc(d time.Duration, fire func()) func() bool {
	return time.AfterFunc(d, fire).Stop
}

// FeedbackTimer owns the single live Feedback and its expiry callback.
type FeedbackTimer struct {
	mu       sync.Mutex
	delay    time.Duration
	schedule Scheduler
	now      func() time.Time
	onExpire func(Feedback)

	seq     uint64
	current *Feedback
	stop    func() bool
}

// NewFeedbackTimer returns a timer that clears feedback after delay.
// A nil schedule falls back to AfterFunc.
func NewFeedbackTimer(delay time.Duration, schedule Scheduler) *FeedbackTimer {
	if schedule == nil {
		schedule = AfterFunc
	}
	if delay <= 0 {
		delay = FeedbackWindow
	}
	return &FeedbackTimer{delay: delay, schedule: schedule, now: time.Now}
}

// OnExpire registers a hook called after a scheduled expiry clears feedback.
func (t *FeedbackTimer) OnExpire(fn func(Feedback)) {
	t.mu.Lock()
	t.onExpire = fn
	t.mu.Unlock()
}

// Arm replaces any live feedback with a new one and restarts the window.
func (t *FeedbackTimer) Arm(label string) Feedback {
	t.mu.Lock()
	t.stopLocked()
	t.seq++
	fb := Feedback{Label: label, ArmedAt: t.now(), Token: t.seq}
	t.current = &fb
	token := fb.Token
	t.mu.Unlock()

	// Scheduling happens outside the lock so a synchronous scheduler may fire
	// straight back into Expire.
	stop := t.schedule(t.delay, func() { t.expire(token, true) })

	t.mu.Lock()
	if t.current != nil && t.current.Token == token {
		t.stop = stop
	}
	t.mu.Unlock()
	return fb
}

// Cancel clears feedback immediately and drops the pending callback.
func (t *FeedbackTimer) Cancel() {
	t.mu.Lock()
	t.stopLocked()
	t.current = nil
	t.mu.Unlock()
}

// Expire clears feedback only if token still identifies the live feedback.
func (t *FeedbackTimer) Expire(token uint64) bool {
	return t.expire(token, false)
}

func (t *FeedbackTimer) expire(token uint64, scheduled bool) bool {
	t.mu.Lock()
	if t.current == nil || t.current.Token != token {
		t.mu.Unlock()
		return false
	}
	fb := *t.current
	t.current = nil
	t.stop = nil
	hook := t.onExpire
	t.mu.Unlock()

	if scheduled && hook != nil {
		hook(fb)
	}
	return true
}

// Current returns the live feedback, if any.
func (t *FeedbackTimer) Current() (Feedback, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Feedback{}, false
	}
	return *t.current, true
}

func (t *FeedbackTimer) stopLocked() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}
