package points

import (
	"context"
	"fmt"

	"github.com/fastprodman/PointLedger/internal/repos/histories"
)

type AuditReport struct {
	UserID   uint64
	Balance  int64
	Replayed int64
	Records  int
}

// Replay folds records into a balance starting from zero.
func Replay(recs []histories.Record) int64 {
	var total int64
	for _, r := range recs {
		switch r.Kind {
		case histories.KindCharge:
			total += r.Amount
		case histories.KindUse:
			total -= r.Amount
		}
	}

	return total
}

// Audit compares the stored balance with its replayed history while holding
// the user's lock. A mismatch returns the report together with
// ErrLedgerMismatch.
func (s *Service) Audit(ctx context.Context, userID uint64) (AuditReport, error) {
	var rep AuditReport

	err := s.locker.WithUserLock(ctx, userID, func() error {
		b, err := s.balances.Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}

		recs, err := s.histories.ListByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}

		rep = AuditReport{
			UserID:   userID,
			Balance:  b.Amount,
			Replayed: Replay(recs),
			Records:  len(recs),
		}

		if rep.Balance != rep.Replayed {
			return fmt.Errorf("%w: user %d has %d, history gives %d",
				ErrLedgerMismatch, userID, rep.Balance, rep.Replayed)
		}

		return nil
	})
	if err != nil {
		return rep, fmt.Errorf("audit: %w", err)
	}

	return rep, nil
}
