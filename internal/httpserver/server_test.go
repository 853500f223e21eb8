package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovoronin/pairline/internal/domain"
	"github.com/ovoronin/pairline/internal/sqlite"
)

func newTestServer(t *testing.T) (*Server, *sqlite.Repository) {
	t.Helper()
	repo, err := sqlite.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	stats := domain.NewStatsService(repo, repo, repo, 5*time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(0, stats, "s3cret", logger), repo
}

func doRequest(s *Server, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_StatsRequiresToken(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, doRequest(s, http.MethodGet, "/stats", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(s, http.MethodGet, "/stats", "wrong").Code)
}

func TestServer_Stats(t *testing.T) {
	s, repo := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, &domain.User{ID: 1}))
	require.NoError(t, repo.UpsertUser(ctx, &domain.User{ID: 2}))
	require.NoError(t, repo.PublishPost(ctx, 1, "hello"))
	_, err := repo.CreateSession(ctx, 1, 2)
	require.NoError(t, err)

	rec := doRequest(s, http.MethodGet, "/stats", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body["user_count"])
	assert.Equal(t, int64(1), body["active_session_count"])
	assert.Equal(t, int64(1), body["active_post_count"])
	assert.Equal(t, int64(1), body["posts_last_24h"])
}
