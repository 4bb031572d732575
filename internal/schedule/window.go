// Package schedule computes the time arithmetic of a distribution run: the
// cron window a run must start in and the export periods it regenerates.
package schedule

import (
	"fmt"
	"time"
)

// DefaultSubmissionPeriodOffset is the skew between a period boundary and
// the instant its export is generated.
const DefaultSubmissionPeriodOffset = -15 * time.Minute

// Window anchors a distribution run to the next even UTC hour.
type Window struct {
	now    time.Time
	offset time.Duration
}

// NewWindow returns the window for a run started at now.
func NewWindow(now time.Time, offset time.Duration) Window {
	return Window{now: now.UTC(), offset: offset}
}

// NextEvenHour rounds t down to an even UTC hour and adds two hours.
func NextEvenHour(t time.Time) time.Time {
	h := t.UTC().Truncate(time.Hour)
	h = h.Add(-time.Duration(h.Hour()%2) * time.Hour)
	return h.Add(2 * time.Hour)
}

// NextEvenHour returns the anchor of the window.
func (w Window) NextEvenHour() time.Time {
	return NextEvenHour(w.now)
}

// EarliestValidStart is the first instant a run may start at (inclusive).
func (w Window) EarliestValidStart() time.Time {
	return w.NextEvenHour().Add(w.offset + time.Minute)
}

// LatestValidStart is the instant after which a run is too late (exclusive).
func (w Window) LatestValidStart() time.Time {
	return w.NextEvenHour().Add(w.offset + 3*time.Minute)
}

// ZipExpirationExclusive is the reference instant for key validity of
// exports built during this run.
func (w Window) ZipExpirationExclusive() time.Time {
	return w.NextEvenHour().Add(2 * time.Hour)
}

// IsValidBatchStart reports whether the run instant falls inside
// [EarliestValidStart, LatestValidStart).
func (w Window) IsValidBatchStart() bool {
	return !w.now.Before(w.EarliestValidStart()) && w.now.Before(w.LatestValidStart())
}

func (w Window) String() string {
	return fmt.Sprintf("window[%s, %s) expires %s",
		w.EarliestValidStart().Format(time.RFC3339),
		w.LatestValidStart().Format(time.RFC3339),
		w.ZipExpirationExclusive().Format(time.RFC3339))
}
