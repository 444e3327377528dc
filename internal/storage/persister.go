package storage

import (
	"context"
	"sync"

	"github.com/example/share-commute/internal/models"
)

// Persister mirrors session state outside the process.
type Persister interface {
	// Load returns the snapshot saved for sessionID; ok is false when none exists.
	Load(ctx context.Context, sessionID string) (snap models.Snapshot, ok bool, err error)
	// Save replaces the snapshot stored for sessionID.
	Save(ctx context.Context, sessionID string, snap models.Snapshot) error
}

type MemoryPersister struct {
	mu        sync.RWMutex
	snapshots map[string]models.Snapshot
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{snapshots: make(map[string]models.Snapshot)}
}

func (m *MemoryPersister) Load(ctx context.Context, sessionID string) (models.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[sessionID]
	return snap, ok, nil
}

func (m *MemoryPersister) Save(ctx context.Context, sessionID string, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[sessionID] = snap
	return nil
}

func (m *MemoryPersister) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, sessionID)
	return nil
}
