package store

import (
	"context"
	"sync"
	"time"

	"rainrelay/internal/constants"
	"rainrelay/internal/models"
)

// MemoryStore keeps all state in process memory. State is lost on restart.
type MemoryStore struct {
	mu     sync.Mutex
	fired  map[string]time.Time
	relays map[models.SourceMessageRef]models.RelayMapping
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fired:  make(map[string]time.Time),
		relays: make(map[models.SourceMessageRef]models.RelayMapping),
	}
}

func (s *MemoryStore) TryMarkFired(_ context.Context, key models.EventKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, ok := s.fired[k]; ok {
		return false, nil
	}
	s.fired[k] = time.Now()
	return true, nil
}

func (s *MemoryStore) HasFired(_ context.Context, key models.EventKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.fired[key.String()]
	return ok, nil
}

func (s *MemoryStore) SaveRelay(_ context.Context, mapping models.RelayMapping) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.relays[mapping.Source]; ok {
		return false, nil
	}
	if mapping.RelayedAt.IsZero() {
		mapping.RelayedAt = time.Now()
	}
	s.relays[mapping.Source] = mapping
	return true, nil
}

func (s *MemoryStore) LookupRelay(_ context.Context, ref models.SourceMessageRef) (*models.DestinationRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping, ok := s.relays[ref]
	if !ok {
		return nil, nil
	}
	dest := mapping.Destination
	return &dest, nil
}

func (s *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for k, at := range s.fired {
		if at.Before(cutoff) {
			delete(s.fired, k)
			removed++
		}
	}
	for ref, mapping := range s.relays {
		if mapping.RelayedAt.Before(cutoff) {
			delete(s.relays, ref)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Stats(_ context.Context) (models.StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.StoreStats{
		Backend:       s.Backend(),
		FiredEvents:   int64(len(s.fired)),
		RelayMappings: int64(len(s.relays)),
	}, nil
}

func (s *MemoryStore) Backend() string {
	return constants.StoreBackendMemory
}

func (s *MemoryStore) Close() error {
	return nil
}
