package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrRunnerNotConfigured = errors.New("sweep: ledger and interval required")

// Ledger is the slice of the reservation ledger the sweep needs.
type Ledger interface {
	ExpireOpenRequests(ctx context.Context) (int, error)
}

// Runner invokes the expiry sweep on a fixed interval. The sweep itself is
// idempotent, so overlapping deployments running their own Runner are safe.
type Runner struct {
	Ledger   Ledger
	Interval time.Duration
	Logger   *slog.Logger
}

func (r *Runner) Run(ctx context.Context) error {
	if r.Ledger == nil || r.Interval <= 0 {
		return ErrRunnerNotConfigured
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			count, err := r.Ledger.ExpireOpenRequests(ctx)
			if err != nil {
				r.logger().Error("expiry sweep failed", "error", err)
				continue
			}
			if count > 0 {
				r.logger().Info("expired stale reservation requests", "count", count)
			}
		}
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
