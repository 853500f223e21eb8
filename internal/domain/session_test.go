package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovoronin/pairline/internal/domain"
)

func TestSessionManager_CreateAndEnd(t *testing.T) {
	ctx := context.Background()
	recency := domain.NewRecencyTracker()
	m := domain.NewSessionManager(newFakeSessionRepo(), recency, testLogger())

	sessionID, err := m.Create(ctx, 1, 2)
	require.NoError(t, err)
	assert.NotZero(t, sessionID)

	partnerID, inChat, err := m.Partner(ctx, 1)
	require.NoError(t, err)
	assert.True(t, inChat)
	assert.Equal(t, int64(2), partnerID)

	partnerID, inChat, err = m.Partner(ctx, 2)
	require.NoError(t, err)
	assert.True(t, inChat)
	assert.Equal(t, int64(1), partnerID)

	pair, err := m.End(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, [2]int64{2, 1}, pair)

	_, inChat, err = m.Partner(ctx, 1)
	require.NoError(t, err)
	assert.False(t, inChat)

	// Ending feeds the recent-partner set on both sides.
	assert.True(t, recency.RecentlyPaired(1, 2))
	assert.True(t, recency.RecentlyPaired(2, 1))
}

func TestSessionManager_RejectsBusyUsers(t *testing.T) {
	ctx := context.Background()
	m := domain.NewSessionManager(newFakeSessionRepo(), domain.NewRecencyTracker(), testLogger())

	_, err := m.Create(ctx, 1, 2)
	require.NoError(t, err)

	_, err = m.Create(ctx, 1, 3)
	assert.ErrorIs(t, err, domain.ErrAlreadyInSession)

	_, err = m.Create(ctx, 3, 2)
	assert.ErrorIs(t, err, domain.ErrAlreadyInSession)

	// A pair of idle users is unaffected.
	_, err = m.Create(ctx, 3, 4)
	assert.NoError(t, err)
}

func TestSessionManager_RejectsSelfPair(t *testing.T) {
	m := domain.NewSessionManager(newFakeSessionRepo(), domain.NewRecencyTracker(), testLogger())

	_, err := m.Create(context.Background(), 7, 7)
	assert.Error(t, err)
}

func TestSessionManager_EndWhileIdle(t *testing.T) {
	recency := domain.NewRecencyTracker()
	m := domain.NewSessionManager(newFakeSessionRepo(), recency, testLogger())

	_, err := m.End(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotInSession)
	assert.False(t, recency.RecentlyPaired(1, 0))
}
