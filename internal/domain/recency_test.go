package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecencyTracker_Pairings(t *testing.T) {
	tracker := NewRecencyTracker()

	tracker.RecordPairing(1, 2)

	assert.True(t, tracker.RecentlyPaired(1, 2))
	assert.True(t, tracker.RecentlyPaired(2, 1))
	assert.False(t, tracker.RecentlyPaired(1, 3))

	cleared := tracker.ResetPairings()
	assert.Equal(t, 2, cleared)
	assert.False(t, tracker.RecentlyPaired(1, 2))
	assert.False(t, tracker.RecentlyPaired(2, 1))
}

func TestRecencyTracker_ViewCooldown(t *testing.T) {
	now := time.Now()
	tracker := NewRecencyTracker()
	tracker.now = func() time.Time { return now }

	require.False(t, tracker.ViewedWithin(1, 2, 10*time.Minute))

	tracker.RecordView(1, 2)
	assert.True(t, tracker.ViewedWithin(1, 2, 10*time.Minute))
	assert.False(t, tracker.ViewedWithin(2, 1, 10*time.Minute), "views are directional")

	// Exactly at the window boundary the cooldown has elapsed.
	now = now.Add(10 * time.Minute)
	assert.False(t, tracker.ViewedWithin(1, 2, 10*time.Minute))
}

func TestRecencyTracker_PruneViews(t *testing.T) {
	now := time.Now()
	tracker := NewRecencyTracker()
	tracker.now = func() time.Time { return now }

	tracker.RecordView(1, 2)
	now = now.Add(12 * time.Hour)
	tracker.RecordView(1, 3)
	now = now.Add(13 * time.Hour)

	// Only the first record is past the 24h retention.
	removed := tracker.PruneViews(24 * time.Hour)
	assert.Equal(t, 1, removed)
	assert.False(t, tracker.ViewedWithin(1, 2, 48*time.Hour))
	assert.True(t, tracker.ViewedWithin(1, 3, 48*time.Hour))

	// Pruning again removes nothing new.
	assert.Equal(t, 0, tracker.PruneViews(24*time.Hour))
}
