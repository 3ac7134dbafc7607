package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/fastprodman/PointLedger/internal/infra/userlock"
	"github.com/fastprodman/PointLedger/internal/repos/balances"
	"github.com/fastprodman/PointLedger/internal/repos/histories"
)

// Outcome labels passed to Recorder.
const (
	OutcomeOK                  = "ok"
	OutcomeInvalidAmount       = "invalid_amount"
	OutcomeInsufficientBalance = "insufficient_balance"
	OutcomeTimeout             = "timeout"
	OutcomeCanceled            = "canceled"
	OutcomeError               = "error"
)

// Recorder receives the outcome of every charge and use call.
type Recorder interface {
	ObserveMutation(kind, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMutation(string, string) {}

type Service struct {
	balances  balances.Balances
	histories histories.Histories
	locker    userlock.Locker
	rec       Recorder
	log       *slog.Logger
}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.rec = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func New(b balances.Balances, h histories.Histories, l userlock.Locker, opts ...Option) *Service {
	s := &Service{
		balances:  b,
		histories: h,
		locker:    l,
		rec:       nopRecorder{},
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	return s
}

// GetBalance returns the user's balance without taking the user lock.
// Users never seen before have a zero balance.
func (s *Service) GetBalance(ctx context.Context, userID uint64) (balances.Balance, error) {
	b, err := s.balances.Get(ctx, userID)
	if err != nil {
		return balances.Balance{}, fmt.Errorf("get balance: %w", err)
	}

	return b, nil
}

// GetHistory returns the user's records oldest first.
func (s *Service) GetHistory(ctx context.Context, userID uint64) ([]histories.Record, error) {
	recs, err := s.histories.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	return recs, nil
}

// Charge adds amount to the user's balance and records a CHARGE.
func (s *Service) Charge(ctx context.Context, userID uint64, amount int64) (balances.Balance, error) {
	b, err := s.mutate(ctx, userID, amount, histories.KindCharge)
	if err != nil {
		return balances.Balance{}, fmt.Errorf("charge: %w", err)
	}

	return b, nil
}

// Use subtracts amount from the user's balance and records a USE. The
// balance check happens under the user's lock.
func (s *Service) Use(ctx context.Context, userID uint64, amount int64) (balances.Balance, error) {
	b, err := s.mutate(ctx, userID, amount, histories.KindUse)
	if err != nil {
		return balances.Balance{}, fmt.Errorf("use: %w", err)
	}

	return b, nil
}

// mutate runs read, validate, write and append as one step under the user's
// lock. Either the balance and the record are both stored or neither is.
func (s *Service) mutate(
	ctx context.Context,
	userID uint64,
	amount int64,
	kind histories.Kind,
) (balances.Balance, error) {
	if amount <= 0 {
		s.rec.ObserveMutation(string(kind), OutcomeInvalidAmount)

		return balances.Balance{}, fmt.Errorf("%w: user %d amount %d must be > 0", ErrInvalidAmount, userID, amount)
	}

	var updated balances.Balance

	err := s.locker.WithUserLock(ctx, userID, func() error {
		cur, err := s.balances.Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}

		next, err := apply(cur, kind, amount)
		if err != nil {
			return err
		}

		updated, err = s.balances.Set(ctx, userID, next)
		if err != nil {
			return fmt.Errorf("write balance: %w", err)
		}

		_, err = s.histories.Append(ctx, userID, amount, kind, updated.UpdatedAt)
		if err != nil {
			return s.rollback(ctx, cur, err)
		}

		return nil
	})

	s.rec.ObserveMutation(string(kind), outcomeOf(err))

	if err != nil {
		return balances.Balance{}, err
	}

	s.log.DebugContext(ctx, "points mutated",
		"userId", userID, "kind", kind, "amount", amount, "balance", updated.Amount)

	return updated, nil
}

func apply(cur balances.Balance, kind histories.Kind, amount int64) (int64, error) {
	switch kind {
	case histories.KindCharge:
		if cur.Amount > math.MaxInt64-amount {
			return 0, fmt.Errorf("%w: user %d balance %d cannot grow by %d",
				ErrInvalidAmount, cur.UserID, cur.Amount, amount)
		}

		return cur.Amount + amount, nil

	case histories.KindUse:
		if amount > cur.Amount {
			return 0, &InsufficientBalanceError{
				UserID:    cur.UserID,
				Balance:   cur.Amount,
				Requested: amount,
			}
		}

		return cur.Amount - amount, nil

	default:
		return 0, fmt.Errorf("invalid kind: %s", kind)
	}
}

// rollback writes prev back, timestamp included, after the record append
// failed. It runs on a context that ignores cancellation so a canceled caller
// cannot leave the balance ahead of its history.
func (s *Service) rollback(ctx context.Context, prev balances.Balance, appendErr error) error {
	appendErr = fmt.Errorf("append record: %w", appendErr)

	err := s.balances.Restore(context.WithoutCancel(ctx), prev)
	if err != nil {
		s.log.ErrorContext(ctx, "balance rollback failed",
			"userId", prev.UserID, "amount", prev.Amount, "error", err)

		return errors.Join(appendErr, fmt.Errorf("rollback balance: %w", err))
	}

	s.log.WarnContext(ctx, "balance rolled back",
		"userId", prev.UserID, "amount", prev.Amount, "error", appendErr)

	return appendErr
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrInvalidAmount):
		return OutcomeInvalidAmount
	case errors.Is(err, ErrInsufficientBalance):
		return OutcomeInsufficientBalance
	case errors.Is(err, userlock.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
