package domain

import (
	"sync"
	"time"
)

// RecencyTracker remembers, per viewer, which partners they were recently
// paired with and when each post was last shown to them. Both tables are
// deliberately ephemeral: they exist to keep matching fair over a span of
// hours, and losing them on restart only loosens fairness temporarily.
//
// Pairing history is cleared wholesale on a fixed cycle while view history
// ages out per entry; see Janitor.
type RecencyTracker struct {
	mu     sync.RWMutex
	paired map[int64]map[int64]struct{}
	views  map[int64]map[int64]time.Time

	now func() time.Time
}

// NewRecencyTracker creates an empty tracker.
func NewRecencyTracker() *RecencyTracker {
	return &RecencyTracker{
		paired: make(map[int64]map[int64]struct{}),
		views:  make(map[int64]map[int64]time.Time),
		now:    time.Now,
	}
}

// RecordPairing inserts each user into the other's recent-partner set.
// Called when a session ends so the pair is not immediately re-matched.
func (t *RecencyTracker) RecordPairing(user1ID, user2ID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.insertPaired(user1ID, user2ID)
	t.insertPaired(user2ID, user1ID)
}

func (t *RecencyTracker) insertPaired(viewerID, partnerID int64) {
	set, ok := t.paired[viewerID]
	if !ok {
		set = make(map[int64]struct{})
		t.paired[viewerID] = set
	}
	set[partnerID] = struct{}{}
}

// RecentlyPaired reports whether partnerID is in viewerID's recent set.
func (t *RecencyTracker) RecentlyPaired(viewerID, partnerID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.paired[viewerID][partnerID]
	return ok
}

// RecordView stamps the moment ownerID's post was shown to viewerID.
func (t *RecencyTracker) RecordView(viewerID, ownerID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byOwner, ok := t.views[viewerID]
	if !ok {
		byOwner = make(map[int64]time.Time)
		t.views[viewerID] = byOwner
	}
	byOwner[ownerID] = t.now()
}

// ViewedWithin reports whether ownerID's post was shown to viewerID less
// than window ago.
func (t *RecencyTracker) ViewedWithin(viewerID, ownerID int64, window time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	shown, ok := t.views[viewerID][ownerID]
	if !ok {
		return false
	}
	return t.now().Sub(shown) < window
}

// ResetPairings clears the entire recent-partner table and returns the
// number of viewers that had entries. This is a wholesale forget, not
// per-entry aging.
func (t *RecencyTracker) ResetPairings() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cleared := len(t.paired)
	t.paired = make(map[int64]map[int64]struct{})
	return cleared
}

// PruneViews drops view records older than retention, sliding per entry,
// and returns the number of records removed.
func (t *RecencyTracker) PruneViews(retention time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-retention)
	removed := 0
	for viewerID, byOwner := range t.views {
		for ownerID, shown := range byOwner {
			if shown.Before(cutoff) {
				delete(byOwner, ownerID)
				removed++
			}
		}
		if len(byOwner) == 0 {
			delete(t.views, viewerID)
		}
	}
	return removed
}
