package tek

import "time"

const (
	// IntervalDuration is the length of one EN interval.
	IntervalDuration = 10 * time.Minute

	// MaxRollingPeriod is the number of intervals in a day.
	MaxRollingPeriod = 144

	// RetentionPeriod is how far back a key may start and still be distributed.
	RetentionPeriod = 14 * 24 * time.Hour

	// MaxTransmissionRiskLevel is the upper bound of the risk scale.
	MaxTransmissionRiskLevel = 7

	// MaxKeyBytes bounds the decoded key length (exclusive).
	MaxKeyBytes = 32
)

// IntervalNumber returns the EN interval number containing t.
func IntervalNumber(t time.Time) int64 {
	secs := t.Unix()
	n := secs / int64(IntervalDuration/time.Second)
	if secs < 0 && secs%int64(IntervalDuration/time.Second) != 0 {
		n--
	}
	return n
}
