package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/srg/bleherd/internal/peripheral"
)

// Memory is an in-process Store used by tests and ephemeral deployments.
type Memory struct {
	mu   sync.RWMutex
	recs map[string]peripheral.Record
	// ids in insertion order so ExportAll is deterministic
	order []string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{recs: make(map[string]peripheral.Record)}
}

func (m *Memory) Add(rec *peripheral.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	cp := *rec
	cp.ID = id
	m.recs[id] = cp
	m.order = append(m.order, id)
	return id, nil
}

func (m *Memory) Get(id string) (*peripheral.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (m *Memory) Set(id string, rec *peripheral.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		m.order = append(m.order, id)
	}
	cp := *rec
	cp.ID = id
	m.recs[id] = cp
	return nil
}

func (m *Memory) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return nil
	}
	delete(m.recs, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ExportAll() ([]*peripheral.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*peripheral.Record, 0, len(m.recs))
	for _, id := range m.order {
		rec := m.recs[id]
		cp := rec
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
