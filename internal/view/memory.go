package view

import (
	"context"
	"sync"

	"streamregistry/internal/domain"
)

// Memory is a map-backed view store. Lookups hand out deep copies so callers
// can never mutate the materialized record in place.
type Memory struct {
	mu      sync.RWMutex
	streams map[string]domain.StreamDefinition
}

func NewMemory() *Memory {
	return &Memory{streams: make(map[string]domain.StreamDefinition)}
}

func (m *Memory) Lookup(_ context.Context, name string) (domain.StreamDefinition, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stream, ok := m.streams[name]
	if !ok {
		return domain.StreamDefinition{}, false, nil
	}
	return stream.Clone(), true, nil
}

func (m *Memory) All(_ context.Context) ([]domain.StreamDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.StreamDefinition, 0, len(m.streams))
	for _, stream := range m.streams {
		out = append(out, stream.Clone())
	}
	return out, nil
}

// Apply projects one changelog event into the map. Tombstones remove the key.
func (m *Memory) Apply(_ context.Context, ev domain.ChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.Stream == nil {
		delete(m.streams, ev.Key)
		return nil
	}
	m.streams[ev.Key] = ev.Stream.Clone()
	return nil
}
