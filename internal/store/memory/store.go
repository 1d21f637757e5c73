// Package memory keeps collected matches in-memory for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/riftwatch/rift-harvester/internal/model"
	"github.com/riftwatch/rift-harvester/internal/store"
)

// Store is an in-memory Sink keyed by match id.
type Store struct {
	mu      sync.RWMutex
	matches map[string]*model.Match
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{matches: make(map[string]*model.Match)}
}

// Upsert stores the match unless its id is already present.
func (s *Store) Upsert(_ context.Context, m *model.Match) (store.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[m.MatchID]; ok {
		return store.AlreadyExists, nil
	}
	s.matches[m.MatchID] = m
	return store.Inserted, nil
}

// Exists reports whether the match id was persisted.
func (s *Store) Exists(_ context.Context, matchID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.matches[matchID]
	return ok, nil
}

// Count returns the number of stored matches.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matches)), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}

// Get returns a stored match for inspection in tests.
func (s *Store) Get(matchID string) (*model.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	return m, ok
}
