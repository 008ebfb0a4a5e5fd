// Package clock supplies "today" to the outer layers so the journal core
// never reads wall-clock time itself.
package clock

import (
	"time"

	"github.com/starford/journal/internal/journal"
)

// Clock reports the current calendar date.
type Clock interface {
	Today() journal.Date
}

// System reads the local wall clock.
type System struct {
	Location *time.Location // nil means time.Local
}

func (s System) Today() journal.Date {
	now := time.Now()
	if s.Location != nil {
		now = now.In(s.Location)
	}
	return journal.DateOf(now)
}

// Fixed always returns the same date. Used by tests.
type Fixed journal.Date

func (f Fixed) Today() journal.Date { return journal.Date(f) }
