// Package submissions loads and stores key submissions. Two backends exist:
// a SQL database and an object bucket of JSON documents.
package submissions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/tek"
)

// Query selects submissions newer than SinceExclusive, ordered by time.
//
// Limit is soft: once Limit submissions are selected, loading continues
// only while the following submissions share the last timestamp, so a
// cursor set to that timestamp never skips a submission. MaxResults is a
// hard cap. Zero disables either bound.
type Query struct {
	SinceExclusive time.Time
	Limit          int
	MaxResults     int
	LocalOnly      bool
}

// Repository is the submission store shared by distribution and federation.
type Repository interface {
	Load(ctx context.Context, q Query) ([]tek.Submission, error)
	Store(ctx context.Context, s tek.Submission) error
}

// limitByTimestamp applies Query limits to items sorted by at.
func limitByTimestamp[T any](items []T, at func(T) time.Time, limit, maxResults int) []T {
	if maxResults > 0 && len(items) > maxResults {
		items = items[:maxResults]
	}
	if limit <= 0 || len(items) <= limit {
		return items
	}
	last := at(items[limit-1])
	n := limit
	for n < len(items) && at(items[n]).Equal(last) {
		n++
	}
	return items[:n]
}
