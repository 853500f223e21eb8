package domain

import "time"

// User is a participant known to the service. The id is assigned by the
// messaging platform and never changes; handle and display name are refreshed
// on every observed interaction.
type User struct {
	ID          int64
	Handle      string
	DisplayName string
	CreatedAt   time.Time
}

// Post is a user's current advertisement. Each user has at most one post;
// publishing again replaces the text and resets the creation timestamp.
type Post struct {
	OwnerID   int64
	Text      string
	CreatedAt time.Time
}

// Session is an anonymous one-to-one pairing between two users.
type Session struct {
	ID        int64
	User1ID   int64
	User2ID   int64
	Active    bool
	CreatedAt time.Time
}

// CorrelationRecord links a sender's original message id to the id of the
// copy delivered to the receiver. Keyed by (SenderID, SenderMsgID) with
// upsert semantics. Written on every relay; read paths are reserved for
// future edit/delete propagation.
type CorrelationRecord struct {
	SenderID      int64
	ReceiverID    int64
	SenderMsgID   int64
	ReceiverMsgID int64
}

// Subscription marks a user's access window. Consulted by higher-level
// policy; the core only stores it.
type Subscription struct {
	UserID    int64
	ExpiresAt time.Time
	Permanent bool
}

// Stats is the privileged counters snapshot.
type Stats struct {
	UserCount          int64
	ActiveSessionCount int64
	ActivePostCount    int64
	PostsLast24h       int64
}

// BroadcastReport tallies the outcome of a broadcast fan-out.
type BroadcastReport struct {
	Total   int
	Success int
	Failure int
}

// SuccessPercentage returns the delivery rate in percent, 0 for an empty run.
func (r BroadcastReport) SuccessPercentage() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Success) / float64(r.Total) * 100
}
