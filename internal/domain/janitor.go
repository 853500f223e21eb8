package domain

import (
	"context"
	"log/slog"
	"time"
)

// Janitor sweep defaults, from the observed production schedules.
const (
	DefaultPostSweepInterval    = time.Hour
	DefaultViewSweepInterval    = time.Hour
	DefaultPairingResetInterval = 3 * time.Hour
	DefaultViewRetention        = 24 * time.Hour
	DefaultSweepBatchSize       = 500
)

// Janitor runs the background time-policy sweeps: post TTL expiry, sliding
// view-record pruning, and the wholesale recent-partner reset. Each sweep
// runs on its own schedule, decoupled from request handling; expiry deletes
// happen in bounded batches so matchmaking is never starved.
type Janitor struct {
	posts   PostRepository
	recency *RecencyTracker
	logger  *slog.Logger

	postTTL       time.Duration
	viewRetention time.Duration
	batchSize     int
}

// NewJanitor creates a Janitor. Zero values fall back to the defaults.
func NewJanitor(posts PostRepository, recency *RecencyTracker, postTTL, viewRetention time.Duration, batchSize int, logger *slog.Logger) *Janitor {
	if postTTL <= 0 {
		postTTL = DefaultPostTTL
	}
	if viewRetention <= 0 {
		viewRetention = DefaultViewRetention
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &Janitor{
		posts:         posts,
		recency:       recency,
		logger:        logger,
		postTTL:       postTTL,
		viewRetention: viewRetention,
		batchSize:     batchSize,
	}
}

// StartPostSweep removes expired posts on the given interval. It runs one
// sweep immediately and then repeats until ctx is cancelled.
func (j *Janitor) StartPostSweep(ctx context.Context, interval time.Duration) {
	j.sweepPosts(ctx)
	runOnTicker(ctx, interval, func() { j.sweepPosts(ctx) })
}

// StartViewSweep prunes view records older than the retention window on the
// given interval, per entry. It blocks until ctx is cancelled.
func (j *Janitor) StartViewSweep(ctx context.Context, interval time.Duration) {
	runOnTicker(ctx, interval, func() {
		if removed := j.recency.PruneViews(j.viewRetention); removed > 0 {
			j.logger.Info("view records pruned", "removed", removed)
		}
	})
}

// StartPairingReset clears the entire recent-partner table on the given
// interval. The wholesale reset (as opposed to the sliding view pruning) is
// intentional: it periodically re-opens every pairing for small user pools.
// It blocks until ctx is cancelled.
func (j *Janitor) StartPairingReset(ctx context.Context, interval time.Duration) {
	runOnTicker(ctx, interval, func() {
		cleared := j.recency.ResetPairings()
		j.logger.Info("recent-partner history reset", "viewers_cleared", cleared)
	})
}

func (j *Janitor) sweepPosts(ctx context.Context) {
	deleted, err := j.posts.DeleteExpiredPosts(ctx, j.postTTL, j.batchSize)
	if err != nil {
		j.logger.Error("post expiry sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		j.logger.Info("expired posts removed", "deleted", deleted)
	}
}

func runOnTicker(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
