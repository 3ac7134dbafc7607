package points

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLedgerMismatch      = errors.New("balance does not match history")
)

// InsufficientBalanceError is returned by Use when the requested amount
// exceeds the balance read under the user's lock. It matches
// ErrInsufficientBalance with errors.Is.
type InsufficientBalanceError struct {
	UserID    uint64
	Balance   int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"insufficient balance: user %d has %d points, requested %d",
		e.UserID, e.Balance, e.Requested,
	)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
