// Package store provides in-memory collaborators for the pharmacy Ledger.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// =============================================================================
// MEMORY STORE - In-memory Persister and audit sink (for testing/dev)
// =============================================================================

// Memory keeps the last saved snapshot and the audit trail in process.
type Memory struct {
	mu      sync.RWMutex
	snap    pharmacy.Snapshot
	saves   int
	entries []pharmacy.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith starts with snap already saved, as if a previous run had
// persisted it.
func NewMemoryWith(snap pharmacy.Snapshot) *Memory {
	return &Memory{snap: snap.Clone()}
}

// Load returns a copy of the last saved snapshot, or an empty one.
func (m *Memory) Load(_ context.Context) (pharmacy.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Clone(), nil
}

// Save replaces the stored snapshot.
func (m *Memory) Save(_ context.Context, snap pharmacy.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// Saves counts successful Save calls.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// =============================================================================
// AUDIT SINK
// =============================================================================

// Append stores an audit entry, keeping entries ordered by timestamp.
func (m *Memory) Append(_ context.Context, entry pharmacy.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Entries usually arrive in order, so this is almost always the tail.
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].Timestamp.After(entry.Timestamp)
	})
	m.entries = append(m.entries, pharmacy.AuditEntry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = entry
	return nil
}

// Entries returns the audit trail, optionally only for one entity.
func (m *Memory) Entries(_ context.Context, entity string, id int) ([]pharmacy.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if entity == "" {
		return append([]pharmacy.AuditEntry(nil), m.entries...), nil
	}
	var result []pharmacy.AuditEntry
	for _, e := range m.entries {
		if e.Entity == entity && e.EntityID == id {
			result = append(result, e)
		}
	}
	return result, nil
}
