package engine

import (
	"fmt"
	"time"
)

// attemptResult is the outcome of one HTTP delivery attempt.
type attemptResult struct {
	StatusCode *int
	Err        error
	Duration   time.Duration
}

// Success means an HTTP response was received with a 2xx status. Non-2xx
// responses and transport errors (including timeouts) are failures.
func (r attemptResult) Success() bool {
	return r.Err == nil && r.StatusCode != nil &&
		*r.StatusCode >= 200 && *r.StatusCode < 300
}

// Reason is the human-readable failure description stored on the record
// and, at exhaustion, on the dead letter entry.
func (r attemptResult) Reason() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if r.StatusCode != nil {
		return fmt.Sprintf("endpoint returned status %d", *r.StatusCode)
	}
	return "no response"
}
