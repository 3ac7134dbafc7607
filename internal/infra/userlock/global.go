package userlock

import (
	"context"

	"golang.org/x/sync/semaphore"
)

var _ Locker = (*Global)(nil)

// Global is the naive policy: a single lock shared by all users.
type Global struct {
	sem  *semaphore.Weighted
	opts options
}

func NewGlobal(opts ...Option) *Global {
	return &Global{
		sem:  semaphore.NewWeighted(1),
		opts: buildOptions(opts),
	}
}

func (g *Global) WithUserLock(ctx context.Context, _ uint64, fn func() error) error {
	return runLocked(ctx, g.sem, g.opts, fn)
}
