package vector

import (
	"context"
	"sync"
)

// MemoryStore keeps the last saved snapshot in process memory. Nothing
// survives a restart, so every start rebuilds.
type MemoryStore struct {
	mu   sync.Mutex
	snap *Snapshot
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Save(_ context.Context, snap *Snapshot) error {
	cp := *snap
	cp.Chunks = append([]Chunk(nil), snap.Chunks...)
	m.mu.Lock()
	m.snap = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, ErrNotBuilt
	}
	cp := *m.snap
	cp.Chunks = append([]Chunk(nil), m.snap.Chunks...)
	return &cp, nil
}
