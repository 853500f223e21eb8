package domain

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"sync"
	"time"
)

// DefaultBroadcastPacing is the delay between consecutive broadcast sends,
// keeping the fan-out under the transport's rate limits.
const DefaultBroadcastPacing = 50 * time.Millisecond

// Broadcaster handles the privileged fan-out flow. An admin enters broadcast
// mode with the shared secret, then the next submitted payload is sent to
// every known user sequentially with a fixed pacing delay. Partial failures
// never halt the remaining sends; there is no rollback.
type Broadcaster struct {
	users  UserRepository
	sender Sender
	token  string
	pacing time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	awaiting map[int64]struct{}
}

// NewBroadcaster creates a Broadcaster gated by the given shared secret.
// Zero pacing falls back to the default.
func NewBroadcaster(users UserRepository, sender Sender, token string, pacing time.Duration, logger *slog.Logger) *Broadcaster {
	if pacing <= 0 {
		pacing = DefaultBroadcastPacing
	}
	return &Broadcaster{
		users:    users,
		sender:   sender,
		token:    token,
		pacing:   pacing,
		logger:   logger,
		awaiting: make(map[int64]struct{}),
	}
}

// Enter puts adminID into awaiting-payload mode. Fails with
// ErrInvalidAdminToken if the token does not match the shared secret.
func (b *Broadcaster) Enter(adminID int64, token string) error {
	if b.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(b.token)) != 1 {
		return ErrInvalidAdminToken
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.awaiting[adminID] = struct{}{}
	b.logger.Info("broadcast mode entered", "admin_id", adminID)
	return nil
}

// Cancel exits awaiting-payload mode with no side effect. Reports whether
// the admin was in that mode.
func (b *Broadcaster) Cancel(adminID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.awaiting[adminID]
	delete(b.awaiting, adminID)
	return ok
}

// TakeAwaiting atomically checks and clears adminID's awaiting-payload mode.
// The caller runs the fan-out only when this reports true.
func (b *Broadcaster) TakeAwaiting(adminID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.awaiting[adminID]
	delete(b.awaiting, adminID)
	return ok
}

// VerifyToken checks a submitted shared secret, for privileged read-only
// commands that carry the token inline.
func (b *Broadcaster) VerifyToken(token string) error {
	if b.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(b.token)) != 1 {
		return ErrInvalidAdminToken
	}
	return nil
}

// Run sends payload to every known user, pacing between sends, and returns
// the tally. Cancelling ctx stops further sends promptly; sends already
// issued stay issued and are counted in the report. Run blocks for the whole
// fan-out, so callers start it on its own goroutine.
func (b *Broadcaster) Run(ctx context.Context, payload Payload) BroadcastReport {
	ids, err := b.users.AllUserIDs(ctx)
	if err != nil {
		b.logger.Error("broadcast aborted: cannot list users", "error", err)
		return BroadcastReport{}
	}

	report := BroadcastReport{Total: len(ids)}
	for _, userID := range ids {
		if ctx.Err() != nil {
			b.logger.Info("broadcast cancelled",
				"sent", report.Success+report.Failure,
				"total", report.Total,
			)
			break
		}

		if _, err := b.sender.Send(ctx, userID, payload); err != nil {
			report.Failure++
			b.logger.Warn("broadcast send failed", "user_id", userID, "error", err)
		} else {
			report.Success++
		}

		select {
		case <-ctx.Done():
		case <-time.After(b.pacing):
		}
	}

	b.logger.Info("broadcast complete",
		"total", report.Total,
		"success", report.Success,
		"failure", report.Failure,
	)
	return report
}
