package memory

import (
	"context"
	"encoding/json"
	"sync"
)

// SnapshotStore is an in-memory implementation of app.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string][]byte),
	}
}

func (s *SnapshotStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *SnapshotStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (s *SnapshotStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// ResultsMap is an in-memory site-wide map from page slug to a recorded quiz result.
type ResultsMap struct {
	mu      sync.RWMutex
	results map[string]json.RawMessage
}

func NewResultsMap(results map[string]json.RawMessage) *ResultsMap {
	m := &ResultsMap{results: make(map[string]json.RawMessage, len(results))}
	for slug, raw := range results {
		m.results[slug] = raw
	}
	return m
}

// Set records the raw result for a slug.
func (m *ResultsMap) Set(slug string, raw json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[slug] = raw
}

// Lookup returns nil, nil when nothing is recorded for slug.
func (m *ResultsMap) Lookup(_ context.Context, slug string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.results[slug], nil
}
