package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ovoronin/pairline/internal/domain"
	_ "modernc.org/sqlite"
)

// Repository implements every domain repository interface on a single
// SQLite database. Users, posts, sessions, correlation records, and
// subscriptions are durable across restarts; this is the one persistence
// engine for the whole service.
type Repository struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           INTEGER PRIMARY KEY,
	handle       TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	owner_id   INTEGER PRIMARY KEY,
	text       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user1_id   INTEGER NOT NULL,
	user2_id   INTEGER NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user1 ON sessions(user1_id);
CREATE INDEX IF NOT EXISTS idx_sessions_user2 ON sessions(user2_id);

CREATE TABLE IF NOT EXISTS message_correlation (
	sender_id       INTEGER NOT NULL,
	receiver_id     INTEGER NOT NULL,
	sender_msg_id   INTEGER NOT NULL,
	receiver_msg_id INTEGER NOT NULL,
	PRIMARY KEY (sender_id, sender_msg_id)
);

CREATE TABLE IF NOT EXISTS subscriptions (
	user_id    INTEGER PRIMARY KEY,
	expires_at INTEGER NOT NULL,
	permanent  INTEGER NOT NULL DEFAULT 0
);
`

// NewRepository opens (or creates) the SQLite database at path and ensures
// the schema exists. The caller should call Close when done.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer; a single connection serializes all
	// statements and avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// storageErr tags a driver failure so callers can match
// domain.ErrStorageUnavailable while keeping the cause in the chain.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStorageUnavailable, err))
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// UpsertUser inserts the user or refreshes handle and display name. The
// original creation timestamp is kept on conflict.
func (r *Repository) UpsertUser(ctx context.Context, user *domain.User) error {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, handle, display_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			handle = excluded.handle,
			display_name = excluded.display_name`,
		user.ID, user.Handle, user.DisplayName, toMillis(createdAt),
	)
	if err != nil {
		return storageErr("upsert user", err)
	}
	return nil
}

// GetUser retrieves a user by id, or nil if unknown.
func (r *Repository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var (
		u  domain.User
		ms int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, handle, display_name, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Handle, &u.DisplayName, &ms)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get user", err)
	}
	u.CreatedAt = fromMillis(ms)
	return &u, nil
}

// AllUserIDs returns every known user id.
func (r *Repository) AllUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, storageErr("list user ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan user id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate user ids", err)
	}
	return ids, nil
}

// CountUsers returns the total number of known users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, storageErr("count users", err)
	}
	return n, nil
}

// PublishPost replaces the owner's post and resets its timestamp.
func (r *Repository) PublishPost(ctx context.Context, ownerID int64, text string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (owner_id, text, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			text = excluded.text,
			created_at = excluded.created_at`,
		ownerID, text, toMillis(time.Now()),
	)
	if err != nil {
		return storageErr("publish post", err)
	}
	return nil
}

// GetPost retrieves the owner's post, or nil if none exists.
func (r *Repository) GetPost(ctx context.Context, ownerID int64) (*domain.Post, error) {
	var (
		p  domain.Post
		ms int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_id, text, created_at FROM posts WHERE owner_id = ?`, ownerID,
	).Scan(&p.OwnerID, &p.Text, &ms)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get post", err)
	}
	p.CreatedAt = fromMillis(ms)
	return &p, nil
}

// DeletePost removes the owner's post and reports whether one existed.
func (r *Repository) DeletePost(ctx context.Context, ownerID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE owner_id = ?`, ownerID)
	if err != nil {
		return false, storageErr("delete post", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("delete post rows", err)
	}
	return n > 0, nil
}

// ActivePosts returns all posts strictly younger than maxAge. A post whose
// age equals maxAge is already expired: the cutoff comparison here and in
// DeleteExpiredPosts are exact complements.
func (r *Repository) ActivePosts(ctx context.Context, maxAge time.Duration) ([]domain.Post, error) {
	cutoff := toMillis(time.Now().Add(-maxAge))
	rows, err := r.db.QueryContext(ctx,
		`SELECT owner_id, text, created_at FROM posts WHERE created_at > ?`, cutoff,
	)
	if err != nil {
		return nil, storageErr("list active posts", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var (
			p  domain.Post
			ms int64
		)
		if err := rows.Scan(&p.OwnerID, &p.Text, &ms); err != nil {
			return nil, storageErr("scan post", err)
		}
		p.CreatedAt = fromMillis(ms)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate posts", err)
	}
	return posts, nil
}

// DeleteExpiredPosts removes posts with age >= ttl in batches of at most
// batchSize rows per statement, so a large backlog never blocks other
// writers for the whole sweep.
func (r *Repository) DeleteExpiredPosts(ctx context.Context, ttl time.Duration, batchSize int) (int64, error) {
	cutoff := toMillis(time.Now().Add(-ttl))
	var total int64
	for {
		res, err := r.db.ExecContext(ctx, `
			DELETE FROM posts WHERE owner_id IN (
				SELECT owner_id FROM posts WHERE created_at <= ? LIMIT ?
			)`, cutoff, batchSize,
		)
		if err != nil {
			return total, storageErr("delete expired posts", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, storageErr("delete expired posts rows", err)
		}
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}

// CountActivePosts returns the number of posts younger than maxAge.
func (r *Repository) CountActivePosts(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := toMillis(time.Now().Add(-maxAge))
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE created_at > ?`, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, storageErr("count active posts", err)
	}
	return n, nil
}

// CountPostsSince returns the number of posts created within window.
func (r *Repository) CountPostsSince(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := toMillis(time.Now().Add(-window))
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE created_at >= ?`, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, storageErr("count posts since", err)
	}
	return n, nil
}

// CreateSession inserts an active session after verifying, in the same
// transaction, that neither user already has one.
func (r *Repository) CreateSession(ctx context.Context, user1ID, user2ID int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin create session", err)
	}
	defer tx.Rollback()

	var busy int64
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE active = 1 AND (user1_id IN (?, ?) OR user2_id IN (?, ?))`,
		user1ID, user2ID, user1ID, user2ID,
	).Scan(&busy)
	if err != nil {
		return 0, storageErr("check idle users", err)
	}
	if busy > 0 {
		return 0, domain.ErrAlreadyInSession
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (user1_id, user2_id, active, created_at)
		VALUES (?, ?, 1, ?)`,
		user1ID, user2ID, toMillis(time.Now()),
	)
	if err != nil {
		return 0, storageErr("insert session", err)
	}
	sessionID, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("session id", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit create session", err)
	}
	return sessionID, nil
}

// ActivePartner resolves the partner of userID from either member of the
// session row.
func (r *Repository) ActivePartner(ctx context.Context, userID int64) (int64, bool, error) {
	var user1ID, user2ID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT user1_id, user2_id FROM sessions
		WHERE active = 1 AND (user1_id = ? OR user2_id = ?)
		LIMIT 1`,
		userID, userID,
	).Scan(&user1ID, &user2ID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storageErr("find partner", err)
	}
	if user1ID == userID {
		return user2ID, true, nil
	}
	return user1ID, true, nil
}

// EndSession marks the user's active session inactive and returns the
// partner id, or domain.ErrNotInSession without mutating anything.
func (r *Repository) EndSession(ctx context.Context, userID int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin end session", err)
	}
	defer tx.Rollback()

	var sessionID, user1ID, user2ID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, user1_id, user2_id FROM sessions
		WHERE active = 1 AND (user1_id = ? OR user2_id = ?)
		LIMIT 1`,
		userID, userID,
	).Scan(&sessionID, &user1ID, &user2ID)
	if err == sql.ErrNoRows {
		return 0, domain.ErrNotInSession
	}
	if err != nil {
		return 0, storageErr("find session", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET active = 0 WHERE id = ?`, sessionID); err != nil {
		return 0, storageErr("close session", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit end session", err)
	}

	if user1ID == userID {
		return user2ID, nil
	}
	return user1ID, nil
}

// CountActiveSessions returns the number of active sessions.
func (r *Repository) CountActiveSessions(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE active = 1`).Scan(&n)
	if err != nil {
		return 0, storageErr("count active sessions", err)
	}
	return n, nil
}

// UpsertCorrelation stores the record, overwriting any row with the same
// (sender_id, sender_msg_id).
func (r *Repository) UpsertCorrelation(ctx context.Context, rec *domain.CorrelationRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_correlation (sender_id, receiver_id, sender_msg_id, receiver_msg_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (sender_id, sender_msg_id) DO UPDATE SET
			receiver_id = excluded.receiver_id,
			receiver_msg_id = excluded.receiver_msg_id`,
		rec.SenderID, rec.ReceiverID, rec.SenderMsgID, rec.ReceiverMsgID,
	)
	if err != nil {
		return storageErr("upsert correlation", err)
	}
	return nil
}

// GetCorrelation retrieves a record by its key, or nil if absent.
func (r *Repository) GetCorrelation(ctx context.Context, senderID, senderMsgID int64) (*domain.CorrelationRecord, error) {
	var rec domain.CorrelationRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT sender_id, receiver_id, sender_msg_id, receiver_msg_id
		FROM message_correlation
		WHERE sender_id = ? AND sender_msg_id = ?`,
		senderID, senderMsgID,
	).Scan(&rec.SenderID, &rec.ReceiverID, &rec.SenderMsgID, &rec.ReceiverMsgID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get correlation", err)
	}
	return &rec, nil
}

// UpsertSubscription stores or replaces the user's subscription.
func (r *Repository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, expires_at, permanent)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			expires_at = excluded.expires_at,
			permanent = excluded.permanent`,
		sub.UserID, toMillis(sub.ExpiresAt), sub.Permanent,
	)
	if err != nil {
		return storageErr("upsert subscription", err)
	}
	return nil
}

// GetSubscription retrieves the user's subscription, or nil if none exists.
func (r *Repository) GetSubscription(ctx context.Context, userID int64) (*domain.Subscription, error) {
	var (
		sub domain.Subscription
		ms  int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, expires_at, permanent FROM subscriptions WHERE user_id = ?`,
		userID,
	).Scan(&sub.UserID, &ms, &sub.Permanent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get subscription", err)
	}
	sub.ExpiresAt = fromMillis(ms)
	return &sub, nil
}
