// internal/warmer/warmer.go
package warmer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/model"
)

// batchSize caps the usernames resolved per call, matching the API's limit.
const batchSize = 100

// Resolver resolves activity for a batch of usernames.
type Resolver interface {
	ResolveActivity(ctx context.Context, usernames []string) (model.ActivityReport, error)
}

// Warmer periodically resolves a fixed set of users so their activity and
// profiles are already in storage when they are requested.
type Warmer struct {
	resolver  Resolver
	logger    *slog.Logger
	usernames []string
	interval  time.Duration
}

// NewWarmer creates a new Warmer instance.
func NewWarmer(resolver Resolver, logger *slog.Logger, usernames []string, interval time.Duration) (*Warmer, error) {
	if interval <= 0 {
		return nil, errors.New("warm interval must be positive")
	}
	return &Warmer{
		resolver:  resolver,
		logger:    logger.With("component", "warmer"),
		usernames: usernames,
		interval:  interval,
	}, nil
}

// Start runs a warm cycle immediately and then on every tick until ctx is done.
func (w *Warmer) Start(ctx context.Context) {
	w.logger.Info("Starting warmer", "interval", w.interval.String(), "users", len(w.usernames))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runCycle(ctx)

	for {
		select {
		case <-ticker.C:
			w.runCycle(ctx)
		case <-ctx.Done():
			w.logger.Info("Warmer shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runCycle resolves every configured user in batches. A failed batch is
// logged and the remaining batches still run.
func (w *Warmer) runCycle(ctx context.Context) {
	w.logger.Info("Starting new warm cycle")
	var resolved, failed int
	for start := 0; start < len(w.usernames); start += batchSize {
		if ctx.Err() != nil {
			return
		}
		batch := w.usernames[start:min(start+batchSize, len(w.usernames))]

		report, err := w.resolver.ResolveActivity(ctx, batch)
		if err != nil {
			if errors.Is(err, apperrors.ErrMissingToken) {
				w.logger.Warn("Skipping warm cycle, GitHub token not set")
				return
			}
			if !errors.Is(err, context.Canceled) {
				w.logger.Error("Failed to warm batch", "users", len(batch), "error", err)
			}
			continue
		}
		resolved += report.GlobalSummary.SuccessfulUsers
		failed += report.GlobalSummary.FailedUsers
	}
	w.logger.Info("Warm cycle finished", "successful_users", resolved, "failed_users", failed)
}
