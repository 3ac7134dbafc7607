package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fastprodman/PointLedger/internal/api"
	"github.com/fastprodman/PointLedger/internal/infra/logging"
	"github.com/fastprodman/PointLedger/internal/infra/userlock"
	"github.com/fastprodman/PointLedger/internal/metrics"
	membalances "github.com/fastprodman/PointLedger/internal/repos/balances/memory"
	memhistories "github.com/fastprodman/PointLedger/internal/repos/histories/memory"
	"github.com/fastprodman/PointLedger/internal/services/points"
	"github.com/fastprodman/PointLedger/pkg/envconf"
	"github.com/fastprodman/PointLedger/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logger := logging.Setup(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(reg)

	// --- Ledger ---
	locker, err := userlock.New(cfg.Ledger.LockPolicy,
		userlock.WithWaitTimeout(cfg.Ledger.LockWaitTimeout),
		userlock.WithWaitObserver(m.ObserveLockWait),
	)
	if err != nil {
		return fmt.Errorf("init locker: %w", err)
	}

	ledger := points.New(
		membalances.New(membalances.WithLatency(cfg.Ledger.StoreLatency)),
		memhistories.New(memhistories.WithLatency(cfg.Ledger.StoreLatency)),
		locker,
		points.WithRecorder(m),
		points.WithLogger(logger),
	)

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.Deps{
		Ledger:      ledger,
		Metrics:     m,
		Gatherer:    reg,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	})

	// Register HTTP server graceful shutdown
	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started",
		"port", cfg.Port,
		"lockPolicy", cfg.Ledger.LockPolicy,
		"lockWaitTimeout", cfg.Ledger.LockWaitTimeout,
	)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
