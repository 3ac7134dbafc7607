// Package throttle simulates the fixed access latency of the in-memory tables.
package throttle

import (
	"context"
	"fmt"
	"time"
)

// Wait blocks for d or until ctx is done, whichever comes first.
// A non-positive d only checks ctx.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		err := ctx.Err()
		if err != nil {
			return fmt.Errorf("throttle: %w", err)
		}

		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("throttle: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
