package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// DefaultDrainTimeout bounds graceful shutdown when the caller passes zero.
const DefaultDrainTimeout = 10 * time.Second

// Run serves srv until ctx is cancelled or SIGINT/SIGTERM arrives, then lets in-flight
// requests finish for up to drain before returning.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger, drain time.Duration) error {
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("server listening", "addr", srv.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	logger.Info("draining connections", "timeout", drain.String())
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drain)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
