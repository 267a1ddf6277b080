// Package availability classifies a scheduled test against the wall clock.
// Status is always derived on read; nothing stores or refreshes it.
package availability

import "time"

type Status string

const (
	Upcoming Status = "upcoming"
	Active   Status = "active"
	Finished Status = "finished"
)

// Of classifies now against the half-open window [open, close).
// The close instant itself is already finished.
func Of(open, close, now time.Time) Status {
	switch {
	case now.Before(open):
		return Upcoming
	case now.Before(close):
		return Active
	default:
		return Finished
	}
}

// Submittable reports whether answers may be accepted at now.
func Submittable(open, close, now time.Time) bool {
	return Of(open, close, now) == Active
}
