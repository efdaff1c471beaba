package lot

import (
	"context"
	"math/rand/v2"
	"time"
)

// SleepJitter blocks for a random duration in [min, max], or until the
// context finishes. Randomized politeness delays keep request timing from
// looking mechanical.
func SleepJitter(ctx context.Context, min, max time.Duration) error {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int64N(int64(span)))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
