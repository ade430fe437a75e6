// Package timebox derives phase state and remaining time from persisted timestamps.
// All checks are pure reads against a caller-supplied server time.
package timebox

import (
	"time"
)

type State int

const (
	NotStarted State = iota
	Started
	Finished
)

func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case Finished:
		return "finished"
	default:
		return "not_started"
	}
}

// Window describes one phase of one attempt.
type Window struct {
	StartedAt  *time.Time
	FinishedAt *time.Time
	Duration   time.Duration
	Grace      time.Duration
}

func (w Window) State() State {
	switch {
	case w.FinishedAt != nil:
		return Finished
	case w.StartedAt != nil:
		return Started
	default:
		return NotStarted
	}
}

// Deadline is the zero time for a phase that has not started.
func (w Window) Deadline() time.Time {
	if w.StartedAt == nil {
		return time.Time{}
	}
	return w.StartedAt.Add(w.Duration)
}

// Remaining is floored at zero. A phase that has not started has its full duration.
func (w Window) Remaining(now time.Time) time.Duration {
	switch w.State() {
	case NotStarted:
		return w.Duration
	case Finished:
		return 0
	}
	left := w.Deadline().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// RemainingSeconds rounds down.
func (w Window) RemainingSeconds(now time.Time) int64 {
	return int64(w.Remaining(now) / time.Second)
}

// Expired is true for a started phase whose time has run out.
func (w Window) Expired(now time.Time) bool {
	return w.State() == Started && w.Remaining(now) <= 0
}

// WithinGrace reports whether a submission stamped now still counts.
func (w Window) WithinGrace(now time.Time) bool {
	if w.StartedAt == nil {
		return false
	}
	return !now.After(w.Deadline().Add(w.Grace))
}

// ClosedByExpiry is true when the phase was finished at or after its deadline,
// as opposed to being finished early by the test-taker.
func (w Window) ClosedByExpiry() bool {
	if w.FinishedAt == nil || w.StartedAt == nil {
		return false
	}
	return !w.FinishedAt.Before(w.Deadline())
}
