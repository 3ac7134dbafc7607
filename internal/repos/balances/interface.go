package balances

import (
	"context"
	"time"
)

// Balance is the current point amount of one user.
type Balance struct {
	UserID    uint64
	Amount    int64
	UpdatedAt time.Time
}

// Balances stores one Balance per user.
//
// Get creates a zero balance for users it has not seen yet. Set overwrites
// unconditionally and performs no validation; callers serialize writes for
// the same user. Restore writes b back exactly as given, UpdatedAt included.
type Balances interface {
	Get(ctx context.Context, userID uint64) (Balance, error)
	Set(ctx context.Context, userID uint64, amount int64) (Balance, error)
	Restore(ctx context.Context, b Balance) error
}
