package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/PointLedger/internal/config"
	"github.com/fastprodman/PointLedger/internal/infra/logging"
)

type apiConfig struct {
	Port            uint16         `env:"APP_PORT"             default:"8080"`
	LogLevel        slog.Level     `env:"APP_LOG_LEVEL"        default:"INFO"`
	LogFormat       logging.Format `env:"APP_LOG_FORMAT"       default:"json"`
	ShutdownTimeout time.Duration  `env:"APP_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string       `env:"APP_CORS_ORIGINS"     default:"*"`
	Ledger          config.LedgerConfig
}
