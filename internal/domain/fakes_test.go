package domain_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ovoronin/pairline/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePostRepo is an in-memory PostRepository for matchmaker tests.
type fakePostRepo struct {
	mu    sync.Mutex
	posts map[int64]domain.Post
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[int64]domain.Post)}
}

func (f *fakePostRepo) PublishPost(_ context.Context, ownerID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[ownerID] = domain.Post{OwnerID: ownerID, Text: text, CreatedAt: time.Now()}
	return nil
}

func (f *fakePostRepo) GetPost(_ context.Context, ownerID int64) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[ownerID]
	if !ok {
		return nil, nil
	}
	return &post, nil
}

func (f *fakePostRepo) DeletePost(_ context.Context, ownerID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.posts[ownerID]
	delete(f.posts, ownerID)
	return ok, nil
}

func (f *fakePostRepo) ActivePosts(_ context.Context, maxAge time.Duration) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var out []domain.Post
	for _, post := range f.posts {
		if post.CreatedAt.After(cutoff) {
			out = append(out, post)
		}
	}
	return out, nil
}

func (f *fakePostRepo) DeleteExpiredPosts(_ context.Context, ttl time.Duration, _ int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	var deleted int64
	for ownerID, post := range f.posts {
		if !post.CreatedAt.After(cutoff) {
			delete(f.posts, ownerID)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakePostRepo) CountActivePosts(ctx context.Context, maxAge time.Duration) (int64, error) {
	posts, err := f.ActivePosts(ctx, maxAge)
	return int64(len(posts)), err
}

func (f *fakePostRepo) CountPostsSince(ctx context.Context, window time.Duration) (int64, error) {
	return f.CountActivePosts(ctx, window)
}

// fakeSessionRepo is an in-memory SessionRepository with the same atomicity
// contract as the SQLite implementation.
type fakeSessionRepo struct {
	mu       sync.Mutex
	nextID   int64
	partners map[int64]int64
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{partners: make(map[int64]int64)}
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, user1ID, user2ID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.partners[user1ID]; busy {
		return 0, domain.ErrAlreadyInSession
	}
	if _, busy := f.partners[user2ID]; busy {
		return 0, domain.ErrAlreadyInSession
	}
	f.nextID++
	f.partners[user1ID] = user2ID
	f.partners[user2ID] = user1ID
	return f.nextID, nil
}

func (f *fakeSessionRepo) ActivePartner(_ context.Context, userID int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	partnerID, ok := f.partners[userID]
	return partnerID, ok, nil
}

func (f *fakeSessionRepo) EndSession(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	partnerID, ok := f.partners[userID]
	if !ok {
		return 0, domain.ErrNotInSession
	}
	delete(f.partners, userID)
	delete(f.partners, partnerID)
	return partnerID, nil
}

func (f *fakeSessionRepo) CountActiveSessions(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.partners) / 2), nil
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]domain.User
	order []int64
}

func newFakeUserRepo(ids ...int64) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[int64]domain.User)}
	for _, id := range ids {
		f.users[id] = domain.User{ID: id}
		f.order = append(f.order, id)
	}
	return f
}

func (f *fakeUserRepo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		f.order = append(f.order, user.ID)
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetUser(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (f *fakeUserRepo) AllUserIDs(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.order...), nil
}

func (f *fakeUserRepo) CountUsers(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

// fakeCorrelationRepo records upserts keyed like the real table.
type fakeCorrelationRepo struct {
	mu      sync.Mutex
	records map[[2]int64]domain.CorrelationRecord
}

func newFakeCorrelationRepo() *fakeCorrelationRepo {
	return &fakeCorrelationRepo{records: make(map[[2]int64]domain.CorrelationRecord)}
}

func (f *fakeCorrelationRepo) UpsertCorrelation(_ context.Context, rec *domain.CorrelationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[[2]int64{rec.SenderID, rec.SenderMsgID}] = *rec
	return nil
}

func (f *fakeCorrelationRepo) GetCorrelation(_ context.Context, senderID, senderMsgID int64) (*domain.CorrelationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[[2]int64{senderID, senderMsgID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
