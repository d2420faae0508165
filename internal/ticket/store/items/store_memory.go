package items

import (
	"context"
	"sort"
	"sync"
	"time"

	"interdict/internal/ticket/models"
	"interdict/internal/ticket/ports"
	"interdict/pkg/domain"
	"interdict/pkg/platform/sentinel"
)

// InMemoryStore keeps ticket item documents in a mutex-guarded map.
// Dedup-index semantics (ExistsAvailable) rely on the shared key locker
// for check-then-insert atomicity.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[domain.TicketItemID]*models.TicketItem
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{items: make(map[domain.TicketItemID]*models.TicketItem)}
}

func (s *InMemoryStore) Insert(_ context.Context, item *models.TicketItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return sentinel.ErrConflict
	}
	s.items[item.ID] = cloneItem(item)
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, ticketID domain.TicketID, value string) (*models.TicketItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.TicketID == ticketID && item.Value == value {
			return cloneItem(item), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByTicket(_ context.Context, ticketID domain.TicketID) ([]*models.TicketItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(i *models.TicketItem) bool { return i.TicketID == ticketID }), nil
}

func (s *InMemoryStore) ListAvailableByTicket(_ context.Context, ticketID domain.TicketID) ([]*models.TicketItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(i *models.TicketItem) bool {
		return i.TicketID == ticketID && i.Available()
	}), nil
}

func (s *InMemoryStore) ListAvailableByProvider(_ context.Context, providerID domain.AccountID, value string) ([]*models.TicketItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(i *models.TicketItem) bool {
		return i.ProviderID == providerID && i.Value == value && i.Available()
	}), nil
}

func (s *InMemoryStore) ExistsAvailable(_ context.Context, genre models.Genre, value string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.Genre == genre && item.Value == value && item.Available() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) DistinctActiveValues(_ context.Context, genre models.Genre) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, item := range s.items {
		if item.Genre != genre || !item.IsActive {
			continue
		}
		if _, ok := seen[item.Value]; ok {
			continue
		}
		seen[item.Value] = struct{}{}
		out = append(out, item.Value)
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, update ports.ItemUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		if item.TicketID != update.TicketID || item.ProviderID != update.ProviderID ||
			item.Value != update.Value || !item.Available() {
			continue
		}
		item.Status = update.Status
		item.Reason = update.Reason
		item.Note = update.Note
		item.Timestamp = update.Timestamp
		item.UpdatedAt = update.UpdatedAt
		count++
	}
	return count, nil
}

func (s *InMemoryStore) SetErrorFlag(_ context.Context, ticketID domain.TicketID, value string, flag bool, updatedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		if item.TicketID == ticketID && item.Value == value {
			item.IsError = flag
			item.UpdatedAt = updatedAt
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) SetActiveFlag(_ context.Context, value string, flag bool, updatedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		if item.Value == value {
			item.IsActive = flag
			item.UpdatedAt = updatedAt
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) DeleteByTicket(_ context.Context, ticketID domain.TicketID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, item := range s.items {
		if item.TicketID == ticketID {
			delete(s.items, id)
			count++
		}
	}
	return count, nil
}

// collect filters and orders by created_at ascending so admission order
// is observable in tests. Callers hold the read lock.
func (s *InMemoryStore) collect(keep func(*models.TicketItem) bool) []*models.TicketItem {
	var out []*models.TicketItem
	for _, item := range s.items {
		if keep(item) {
			out = append(out, cloneItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneItem(i *models.TicketItem) *models.TicketItem {
	clone := *i
	if i.Timestamp != nil {
		ts := *i.Timestamp
		clone.Timestamp = &ts
	}
	return &clone
}
