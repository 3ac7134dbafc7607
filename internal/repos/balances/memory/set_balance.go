package balances

import (
	"context"
	"fmt"

	"github.com/fastprodman/PointLedger/internal/infra/throttle"
	"github.com/fastprodman/PointLedger/internal/repos/balances"
)

func (r *balancesRepo) Set(ctx context.Context, userID uint64, amount int64) (balances.Balance, error) {
	err := throttle.Wait(ctx, r.latency)
	if err != nil {
		return balances.Balance{}, fmt.Errorf("set balance: %w", err)
	}

	b := balances.Balance{
		UserID:    userID,
		Amount:    amount,
		UpdatedAt: r.now(),
	}

	r.mu.Lock()
	r.rows[userID] = b
	r.mu.Unlock()

	return b, nil
}
