package histories

import (
	"context"
	"fmt"

	"github.com/fastprodman/PointLedger/internal/infra/throttle"
	"github.com/fastprodman/PointLedger/internal/repos/histories"
)

func (r *historiesRepo) ListByUser(ctx context.Context, userID uint64) ([]histories.Record, error) {
	err := throttle.Wait(ctx, r.latency)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.byUser[userID]
	out := make([]histories.Record, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.records[i])
	}

	return out, nil
}
