package histories

import (
	"context"
	"fmt"
	"time"

	"github.com/fastprodman/PointLedger/internal/infra/throttle"
	"github.com/fastprodman/PointLedger/internal/repos/histories"
)

func (r *historiesRepo) Append(
	ctx context.Context,
	userID uint64,
	amount int64,
	kind histories.Kind,
	at time.Time,
) (histories.Record, error) {
	err := throttle.Wait(ctx, r.latency)
	if err != nil {
		return histories.Record{}, fmt.Errorf("append record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	rec := histories.Record{
		ID:     r.lastID,
		UserID: userID,
		Amount: amount,
		Kind:   kind,
		At:     at,
	}

	r.records = append(r.records, rec)
	r.byUser[userID] = append(r.byUser[userID], len(r.records)-1)

	return rec, nil
}
