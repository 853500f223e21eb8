package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for known users.
type UserRepository interface {
	// UpsertUser inserts the user or refreshes handle and display name.
	UpsertUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by id. Returns nil if unknown.
	GetUser(ctx context.Context, id int64) (*User, error)

	// AllUserIDs returns the ids of every known user.
	AllUserIDs(ctx context.Context) ([]int64, error)

	// CountUsers returns the total number of known users.
	CountUsers(ctx context.Context) (int64, error)
}

// PostRepository defines persistence operations for advertisements.
type PostRepository interface {
	// PublishPost replaces the owner's post, resetting its timestamp.
	PublishPost(ctx context.Context, ownerID int64, text string) error

	// GetPost retrieves the owner's post. Returns nil if none exists.
	GetPost(ctx context.Context, ownerID int64) (*Post, error)

	// DeletePost removes the owner's post. Reports whether a post existed.
	DeletePost(ctx context.Context, ownerID int64) (bool, error)

	// ActivePosts returns all posts younger than maxAge, in no particular
	// order. Selection randomization is the caller's job.
	ActivePosts(ctx context.Context, maxAge time.Duration) ([]Post, error)

	// DeleteExpiredPosts removes posts whose age is at least ttl, deleting
	// in batches of at most batchSize rows so sweeps never hold the writer
	// across a full scan. Returns the number of rows deleted.
	DeleteExpiredPosts(ctx context.Context, ttl time.Duration, batchSize int) (int64, error)

	// CountActivePosts returns the number of posts younger than maxAge.
	CountActivePosts(ctx context.Context, maxAge time.Duration) (int64, error)

	// CountPostsSince returns the number of posts created within window.
	CountPostsSince(ctx context.Context, window time.Duration) (int64, error)
}

// SessionRepository defines persistence operations for pairings. The
// creation check-and-insert runs inside a single transaction so two
// concurrent attempts can never place one user into two sessions.
type SessionRepository interface {
	// CreateSession atomically verifies both users are idle and inserts an
	// active session, returning its id. Fails with ErrAlreadyInSession if
	// either user already has one.
	CreateSession(ctx context.Context, user1ID, user2ID int64) (int64, error)

	// ActivePartner resolves the partner of userID. The second return is
	// false when the user has no active session.
	ActivePartner(ctx context.Context, userID int64) (int64, bool, error)

	// EndSession marks the user's active session inactive and returns the
	// partner id. Fails with ErrNotInSession when there is none.
	EndSession(ctx context.Context, userID int64) (int64, error)

	// CountActiveSessions returns the number of active sessions.
	CountActiveSessions(ctx context.Context) (int64, error)
}

// CorrelationRepository persists delivered-message correlation records.
type CorrelationRepository interface {
	// UpsertCorrelation stores the record, overwriting any existing row
	// with the same (SenderID, SenderMsgID).
	UpsertCorrelation(ctx context.Context, rec *CorrelationRecord) error

	// GetCorrelation retrieves a record by its key. Returns nil if absent.
	GetCorrelation(ctx context.Context, senderID, senderMsgID int64) (*CorrelationRecord, error)
}

// SubscriptionRepository persists access windows for higher-level policy.
type SubscriptionRepository interface {
	// UpsertSubscription stores or replaces the user's subscription.
	UpsertSubscription(ctx context.Context, sub *Subscription) error

	// GetSubscription retrieves the user's subscription. Returns nil if
	// none exists.
	GetSubscription(ctx context.Context, userID int64) (*Subscription, error)
}

//go:generate mockgen -destination=mocks/sender.go -package=mocks github.com/ovoronin/pairline/internal/domain Sender

// Sender delivers one payload to one target chat and returns the delivered
// message id. It is the outbound half of the transport collaborator;
// implementations own their timeout contract, the core never retries.
type Sender interface {
	Send(ctx context.Context, targetID int64, payload Payload) (int64, error)
}
