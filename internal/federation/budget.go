package federation

import (
	"context"
	"time"
)

// budgetExhausted reports whether the time left before ctx's deadline is
// shorter than the slowest iteration seen so far.
func budgetExhausted(ctx context.Context, longest time.Duration) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return time.Until(deadline) <= longest
}
