package bulkops

import (
	"sort"
	"sync"
	"time"
)

// DefaultRetention is how long terminal operations stay queryable before the
// periodic sweep removes them.
const DefaultRetention = 24 * time.Hour

// ProgressStore is the in-memory map of operation id to progress snapshot.
// It is deliberately non-durable; nothing survives a process restart.
type ProgressStore struct {
	mu  sync.RWMutex
	ops map[string]*Progress
}

// NewProgressStore creates an empty store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{ops: make(map[string]*Progress)}
}

// Put upserts a snapshot by operation id. The stored value is a deep copy, so
// the caller keeps exclusive ownership of its Progress instance.
func (s *ProgressStore) Put(p *Progress) {
	cp := p.clone()
	s.mu.Lock()
	s.ops[p.OperationID] = cp
	s.mu.Unlock()
}

// Get returns a copy of the snapshot, or nil if the operation is unknown.
func (s *ProgressStore) Get(id string) *Progress {
	s.mu.RLock()
	p, ok := s.ops[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return p.clone()
}

// List returns snapshots sorted by start time descending, optionally filtered
// to one admin user. A limit <= 0 means no limit.
func (s *ProgressStore) List(adminUserID string, limit int) []*Progress {
	s.mu.RLock()
	all := make([]*Progress, 0, len(s.ops))
	for _, p := range s.ops {
		if adminUserID != "" && p.AdminUserID != adminUserID {
			continue
		}
		all = append(all, p.clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].StartTime.After(all[j].StartTime)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Sweep deletes terminal entries whose completion time is older than maxAge
// and returns how many were removed. Running operations are never touched.
func (s *ProgressStore) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, p := range s.ops {
		if !p.Status.Terminal() || p.CompletionTime == nil {
			continue
		}
		if p.CompletionTime.Before(cutoff) {
			delete(s.ops, id)
			removed++
		}
	}
	return removed
}
