package whitelist

import (
	"context"
	"sort"
	"sync"
	"time"

	"interdict/internal/ticket/models"
	"interdict/pkg/domain"
	"interdict/pkg/platform/sentinel"
)

// InMemoryStore keeps whitelist entries keyed by value.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*models.WhitelistEntry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]*models.WhitelistEntry)}
}

func (s *InMemoryStore) Insert(_ context.Context, entry *models.WhitelistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.Value]; exists {
		return sentinel.ErrConflict
	}
	s.entries[entry.Value] = cloneEntry(entry)
	return nil
}

func (s *InMemoryStore) ExistsActive(_ context.Context, genre models.Genre, value string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[value]
	return ok && entry.IsActive && entry.Genre == genre, nil
}

func (s *InMemoryStore) Exists(_ context.Context, value string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[value]
	return ok, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.WhitelistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(*models.WhitelistEntry) bool { return true }), nil
}

func (s *InMemoryStore) ListByCreator(_ context.Context, creatorID domain.AccountID) ([]*models.WhitelistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(e *models.WhitelistEntry) bool { return e.CreatedBy == creatorID }), nil
}

func (s *InMemoryStore) SetActiveFlag(_ context.Context, value string, flag bool, updatedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[value]
	if !ok {
		return 0, nil
	}
	entry.IsActive = flag
	entry.UpdatedAt = updatedAt
	return 1, nil
}

func (s *InMemoryStore) Delete(_ context.Context, value string, creatorID domain.AccountID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[value]
	if !ok || entry.CreatedBy != creatorID {
		return 0, nil
	}
	delete(s.entries, value)
	return 1, nil
}

// collect filters and orders by value ascending. Callers hold the read
// lock.
func (s *InMemoryStore) collect(keep func(*models.WhitelistEntry) bool) []*models.WhitelistEntry {
	var out []*models.WhitelistEntry
	for _, entry := range s.entries {
		if keep(entry) {
			out = append(out, cloneEntry(entry))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

func cloneEntry(e *models.WhitelistEntry) *models.WhitelistEntry {
	clone := *e
	return &clone
}
