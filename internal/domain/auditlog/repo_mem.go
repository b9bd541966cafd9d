package auditlog

import (
	"context"
	"iter"
	"sync"
)

// MemoryRepository keeps entries in process memory, newest first.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]Entry{e}, m.entries...)
	return nil
}

func (m *MemoryRepository) Scan(_ context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		m.mu.RLock()
		snapshot := m.entries
		m.mu.RUnlock()

		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *MemoryRepository) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MemoryRepository) LastSeq(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return 0, nil
	}
	return m.entries[0].Seq, nil
}
