package balances

import (
	"context"
	"fmt"

	"github.com/fastprodman/PointLedger/internal/infra/throttle"
	"github.com/fastprodman/PointLedger/internal/repos/balances"
)

func (r *balancesRepo) Restore(ctx context.Context, b balances.Balance) error {
	err := throttle.Wait(ctx, r.latency)
	if err != nil {
		return fmt.Errorf("restore balance: %w", err)
	}

	r.mu.Lock()
	r.rows[b.UserID] = b
	r.mu.Unlock()

	return nil
}
