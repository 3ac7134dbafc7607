package balances

import (
	"sync"
	"time"

	"github.com/fastprodman/PointLedger/internal/repos/balances"
)

var _ balances.Balances = (*balancesRepo)(nil)

type balancesRepo struct {
	mu      sync.RWMutex
	rows    map[uint64]balances.Balance
	latency time.Duration
	now     func() time.Time
}

type Option func(*balancesRepo)

// WithLatency delays every call by d to mimic table access time.
func WithLatency(d time.Duration) Option {
	return func(r *balancesRepo) { r.latency = d }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *balancesRepo) { r.now = now }
}

func New(opts ...Option) *balancesRepo {
	r := &balancesRepo{
		rows: make(map[uint64]balances.Balance),
		now:  time.Now,
	}
	for _, o := range opts {
		o(r)
	}

	return r
}
