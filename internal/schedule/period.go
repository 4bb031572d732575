package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the granularity of an export period.
type Kind int

const (
	Daily Kind = iota
	TwoHourly
)

const (
	DailyPathPrefix     = "distribution/daily/"
	TwoHourlyPathPrefix = "distribution/two-hourly/"

	dailyPeriods     = 15
	twoHourlyPeriods = 14 * 12
)

func (k Kind) String() string {
	switch k {
	case Daily:
		return "daily"
	case TwoHourly:
		return "two-hourly"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) length() time.Duration {
	if k == Daily {
		return 24 * time.Hour
	}
	return 2 * time.Hour
}

func (k Kind) count() int {
	if k == Daily {
		return dailyPeriods
	}
	return twoHourlyPeriods
}

// Period is a half-open UTC interval [Start, End) published as one export.
type Period struct {
	Kind Kind
	End  time.Time
}

// PeriodFor returns the period of the given kind containing t.
func PeriodFor(kind Kind, t time.Time) Period {
	t = t.UTC()
	var end time.Time
	switch kind {
	case Daily:
		end = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	default:
		end = NextEvenHour(t)
	}
	return Period{Kind: kind, End: end}
}

// Start returns the inclusive start of the period.
func (p Period) Start() time.Time {
	return p.End.Add(-p.Kind.length())
}

// AllPeriodsToGenerate returns p followed by its predecessors, newest first,
// covering the retention horizon.
func (p Period) AllPeriodsToGenerate() []Period {
	n := p.Kind.count()
	out := make([]Period, 0, n)
	end := p.End
	for i := 0; i < n; i++ {
		out = append(out, Period{Kind: p.Kind, End: end})
		end = end.Add(-p.Kind.length())
	}
	return out
}

// Covers reports whether a submission at t belongs to the period once both
// bounds are shifted by offset: Start+offset <= t < End+offset.
func (p Period) Covers(t time.Time, offset time.Duration) bool {
	to := p.End.Add(offset)
	from := to.Add(-p.Kind.length())
	return !t.Before(from) && t.Before(to)
}

// ZipPath is the object key the period's export is published under.
func (p Period) ZipPath() string {
	switch p.Kind {
	case Daily:
		return DailyPathPrefix + p.End.UTC().Format("20060102") + "00.zip"
	default:
		return TwoHourlyPathPrefix + p.End.UTC().Format("2006010215") + ".zip"
	}
}

func (p Period) String() string {
	return fmt.Sprintf("%s [%s, %s)", p.Kind, p.Start().Format(time.RFC3339), p.End.Format(time.RFC3339))
}

// ParsePeriod recovers the period from a key produced by ZipPath.
func ParsePeriod(key string) (Period, error) {
	switch {
	case strings.HasPrefix(key, DailyPathPrefix):
		s := strings.TrimSuffix(strings.TrimPrefix(key, DailyPathPrefix), "00.zip")
		end, err := time.Parse("20060102", s)
		if err != nil {
			return Period{}, fmt.Errorf("parse daily period %q: %w", key, err)
		}
		return Period{Kind: Daily, End: end}, nil
	case strings.HasPrefix(key, TwoHourlyPathPrefix):
		s := strings.TrimSuffix(strings.TrimPrefix(key, TwoHourlyPathPrefix), ".zip")
		end, err := time.Parse("2006010215", s)
		if err != nil {
			return Period{}, fmt.Errorf("parse two-hourly period %q: %w", key, err)
		}
		if end.Hour()%2 != 0 {
			return Period{}, fmt.Errorf("parse two-hourly period %q: odd hour", key)
		}
		return Period{Kind: TwoHourly, End: end}, nil
	default:
		return Period{}, fmt.Errorf("unknown period key %q", key)
	}
}
