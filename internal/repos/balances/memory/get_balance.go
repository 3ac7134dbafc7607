package balances

import (
	"context"
	"fmt"

	"github.com/fastprodman/PointLedger/internal/infra/throttle"
	"github.com/fastprodman/PointLedger/internal/repos/balances"
)

func (r *balancesRepo) Get(ctx context.Context, userID uint64) (balances.Balance, error) {
	err := throttle.Wait(ctx, r.latency)
	if err != nil {
		return balances.Balance{}, fmt.Errorf("get balance: %w", err)
	}

	r.mu.RLock()
	b, ok := r.rows[userID]
	r.mu.RUnlock()

	if ok {
		return b, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another caller may have created it between the two locks
	b, ok = r.rows[userID]
	if !ok {
		b = balances.Balance{UserID: userID, UpdatedAt: r.now()}
		r.rows[userID] = b
	}

	return b, nil
}
