package histories

import (
	"sync"
	"time"

	"github.com/fastprodman/PointLedger/internal/repos/histories"
)

var _ histories.Histories = (*historiesRepo)(nil)

type historiesRepo struct {
	mu      sync.RWMutex
	lastID  uint64
	records []histories.Record
	// positions of each user's records inside records
	byUser  map[uint64][]int
	latency time.Duration
}

type Option func(*historiesRepo)

// WithLatency delays every call by d to mimic table access time.
func WithLatency(d time.Duration) Option {
	return func(r *historiesRepo) { r.latency = d }
}

func New(opts ...Option) *historiesRepo {
	r := &historiesRepo{
		byUser: make(map[uint64][]int),
	}
	for _, o := range opts {
		o(r)
	}

	return r
}
