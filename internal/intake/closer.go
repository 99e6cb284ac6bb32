package intake

import "time"

// Mode selects how interval closing is detected.
type Mode int

const (
	// ModeLive uses the wall-clock second of each tick.
	ModeLive Mode = iota
	// ModePlayback counts ticks, since recorded ticks carry no sub-minute timing.
	ModePlayback
)

// String returns "live" or "playback".
func (m Mode) String() string {
	if m == ModePlayback {
		return "playback"
	}
	return "live"
}

// Closing thresholds. Live ticks arrive roughly every two seconds, about
// thirty per minute.
const (
	LiveClosingSecond    = 50
	PlaybackClosingTicks = 20
)

// IntervalCloser flags the closing part of an interval exactly once.
type IntervalCloser struct {
	mode    Mode
	handled bool
	counter int
}

// NewIntervalCloser creates a closer for mode.
func NewIntervalCloser(mode Mode) *IntervalCloser {
	return &IntervalCloser{mode: mode}
}

// Observe reports whether the interval is closing at t and has not been
// handled yet. A true result marks the interval handled and resets the counter.
func (c *IntervalCloser) Observe(t time.Time) bool {
	closing := t.Second() > LiveClosingSecond
	if c.mode == ModePlayback {
		closing = c.counter > PlaybackClosingTicks
	}

	if !closing || c.handled {
		return false
	}
	c.handled = true
	c.counter = 0
	return true
}

// Rollover starts a new interval.
func (c *IntervalCloser) Rollover() {
	c.handled = false
	c.counter = 0
}

// Advance counts a processed tick.
func (c *IntervalCloser) Advance() { c.counter++ }

// Handled reports whether closing was already flagged this interval.
func (c *IntervalCloser) Handled() bool { return c.handled }

// Counter returns ticks seen since the last reset.
func (c *IntervalCloser) Counter() int { return c.counter }

// Mode returns the detection mode.
func (c *IntervalCloser) Mode() Mode { return c.mode }
