package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// sessionLockStripes is the size of the per-user mutex table. Lock order is
// by stripe index, so two concurrent pairing attempts over the same users
// can never deadlock or interleave.
const sessionLockStripes = 64

// SessionManager is the Idle/InChat state machine. A user is InChat exactly
// while an active session row exists for them; the repository enforces the
// both-idle check and the insert in one transaction, and the manager
// serializes attempts touching the same users through striped locks.
type SessionManager struct {
	repo    SessionRepository
	recency *RecencyTracker
	logger  *slog.Logger

	locks [sessionLockStripes]sync.Mutex
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(repo SessionRepository, recency *RecencyTracker, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		repo:    repo,
		recency: recency,
		logger:  logger,
	}
}

func (m *SessionManager) stripe(userID int64) int {
	return int(uint64(userID) % sessionLockStripes)
}

// lockPair acquires the stripes for both users in index order and returns
// the matching unlock.
func (m *SessionManager) lockPair(user1ID, user2ID int64) func() {
	a, b := m.stripe(user1ID), m.stripe(user2ID)
	if a > b {
		a, b = b, a
	}
	m.locks[a].Lock()
	if b != a {
		m.locks[b].Lock()
	}
	return func() {
		if b != a {
			m.locks[b].Unlock()
		}
		m.locks[a].Unlock()
	}
}

// Create pairs two users, transitioning both to InChat. Fails with
// ErrAlreadyInSession if either user already has an active session.
func (m *SessionManager) Create(ctx context.Context, user1ID, user2ID int64) (int64, error) {
	if user1ID == user2ID {
		return 0, fmt.Errorf("cannot pair user %d with themselves", user1ID)
	}

	unlock := m.lockPair(user1ID, user2ID)
	defer unlock()

	sessionID, err := m.repo.CreateSession(ctx, user1ID, user2ID)
	if err != nil {
		return 0, err
	}

	m.logger.Info("session created",
		"session_id", sessionID,
		"user1_id", user1ID,
		"user2_id", user2ID,
	)
	return sessionID, nil
}

// Partner returns the session partner of userID. The second return is false
// when the user is Idle.
func (m *SessionManager) Partner(ctx context.Context, userID int64) (int64, bool, error) {
	return m.repo.ActivePartner(ctx, userID)
}

// End closes userID's active session, returning both members to Idle and
// inserting each into the other's recent-partner set. Returns the pair
// (userID first) so the caller can notify both sides. Fails with
// ErrNotInSession, mutating nothing, when the user has no active session.
func (m *SessionManager) End(ctx context.Context, userID int64) ([2]int64, error) {
	m.locks[m.stripe(userID)].Lock()
	defer m.locks[m.stripe(userID)].Unlock()

	partnerID, err := m.repo.EndSession(ctx, userID)
	if err != nil {
		return [2]int64{}, err
	}

	m.recency.RecordPairing(userID, partnerID)

	m.logger.Info("session ended", "user_id", userID, "partner_id", partnerID)
	return [2]int64{userID, partnerID}, nil
}
