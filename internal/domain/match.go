package domain

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

const (
	// DefaultViewCooldown is how long a post stays hidden from a viewer
	// after being shown to them.
	DefaultViewCooldown = 10 * time.Minute

	// DefaultPostTTL is how long a post stays active after publishing.
	DefaultPostTTL = 5 * time.Hour
)

// Matchmaker selects candidate posts for browsing viewers. A candidate is
// excluded if it belongs to the viewer, its owner is in an active session,
// its owner is in the viewer's recent-partner set, or it was already shown
// to the viewer within the cooldown window.
type Matchmaker struct {
	posts    PostRepository
	sessions SessionRepository
	recency  *RecencyTracker
	cooldown time.Duration
	postTTL  time.Duration
	logger   *slog.Logger
}

// NewMatchmaker creates a Matchmaker. Zero cooldown or postTTL fall back to
// the defaults.
func NewMatchmaker(posts PostRepository, sessions SessionRepository, recency *RecencyTracker, cooldown, postTTL time.Duration, logger *slog.Logger) *Matchmaker {
	if cooldown <= 0 {
		cooldown = DefaultViewCooldown
	}
	if postTTL <= 0 {
		postTTL = DefaultPostTTL
	}
	return &Matchmaker{
		posts:    posts,
		sessions: sessions,
		recency:  recency,
		cooldown: cooldown,
		postTTL:  postTTL,
		logger:   logger,
	}
}

// SelectCandidate picks one eligible post for the viewer, uniformly at
// random, and immediately records the view so repeat browsing cannot
// re-surface the same candidate within the cooldown — even if the viewer
// declines. Returns ErrNoCandidate when every active post is excluded.
func (m *Matchmaker) SelectCandidate(ctx context.Context, viewerID int64) (*Post, error) {
	active, err := m.posts.ActivePosts(ctx, m.postTTL)
	if err != nil {
		return nil, fmt.Errorf("list active posts: %w", err)
	}

	var eligible []Post
	for _, post := range active {
		if post.OwnerID == viewerID {
			continue
		}
		if m.recency.RecentlyPaired(viewerID, post.OwnerID) {
			continue
		}
		if m.recency.ViewedWithin(viewerID, post.OwnerID, m.cooldown) {
			continue
		}
		_, inSession, err := m.sessions.ActivePartner(ctx, post.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("check owner session: %w", err)
		}
		if inSession {
			continue
		}
		eligible = append(eligible, post)
	}

	if len(eligible) == 0 {
		return nil, ErrNoCandidate
	}

	chosen := eligible[rand.IntN(len(eligible))]

	// Declines still consume a cooldown slot: the view is recorded before
	// the viewer ever reacts to the candidate.
	m.recency.RecordView(viewerID, chosen.OwnerID)

	m.logger.Debug("candidate selected",
		"viewer_id", viewerID,
		"owner_id", chosen.OwnerID,
		"pool_size", len(eligible),
	)
	return &chosen, nil
}
