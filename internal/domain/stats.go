package domain

import (
	"context"
	"fmt"
	"time"
)

// StatsService assembles the privileged counters snapshot.
type StatsService struct {
	users    UserRepository
	sessions SessionRepository
	posts    PostRepository
	postTTL  time.Duration
}

// NewStatsService creates a StatsService. Zero postTTL falls back to the
// default.
func NewStatsService(users UserRepository, sessions SessionRepository, posts PostRepository, postTTL time.Duration) *StatsService {
	if postTTL <= 0 {
		postTTL = DefaultPostTTL
	}
	return &StatsService{
		users:    users,
		sessions: sessions,
		posts:    posts,
		postTTL:  postTTL,
	}
}

// Snapshot returns current counters: known users, active sessions, active
// posts, and posts created in the last 24 hours.
func (s *StatsService) Snapshot(ctx context.Context) (*Stats, error) {
	users, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	sessions, err := s.sessions.CountActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active sessions: %w", err)
	}
	posts, err := s.posts.CountActivePosts(ctx, s.postTTL)
	if err != nil {
		return nil, fmt.Errorf("count active posts: %w", err)
	}
	recent, err := s.posts.CountPostsSince(ctx, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("count recent posts: %w", err)
	}

	return &Stats{
		UserCount:          users,
		ActiveSessionCount: sessions,
		ActivePostCount:    posts,
		PostsLast24h:       recent,
	}, nil
}
