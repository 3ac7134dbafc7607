package histories

import (
	"context"
	"time"
)

type Kind string

const (
	KindCharge Kind = "CHARGE"
	KindUse    Kind = "USE"
)

// Record is one immutable ledger entry.
type Record struct {
	ID     uint64
	UserID uint64
	Amount int64
	Kind   Kind
	At     time.Time
}

// Histories is an append-only log of records. IDs increase strictly in
// insertion order; ListByUser returns a user's records in that order and an
// empty slice when there are none.
type Histories interface {
	Append(ctx context.Context, userID uint64, amount int64, kind Kind, at time.Time) (Record, error)
	ListByUser(ctx context.Context, userID uint64) ([]Record, error)
}
