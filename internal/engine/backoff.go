package engine

import "time"

// BackoffSchedule is the fixed sequence of delays inserted between
// consecutive retry attempts.
type BackoffSchedule []time.Duration

// DefaultBackoff is the documented default schedule.
var DefaultBackoff = BackoffSchedule{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// DelayFor returns the delay to wait after the given 1-based attempt
// number. Attempts past the end of the table clamp to the last entry.
func (s BackoffSchedule) DelayFor(attempt int) time.Duration {
	if len(s) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s) {
		idx = len(s) - 1
	}
	return s[idx]
}
