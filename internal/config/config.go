package config

import (
	"time"

	"github.com/fastprodman/PointLedger/internal/infra/userlock"
)

// LedgerConfig tunes the point ledger core.
type LedgerConfig struct {
	LockPolicy      userlock.Policy `env:"LEDGER_LOCK_POLICY"       default:"per-user"`
	LockWaitTimeout time.Duration   `env:"LEDGER_LOCK_WAIT_TIMEOUT" default:"5s"`
	StoreLatency    time.Duration   `env:"LEDGER_STORE_LATENCY"     default:"0s"`
}
