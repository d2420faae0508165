package tickets

import (
	"context"
	"sort"
	"sync"
	"time"

	"interdict/internal/ticket/models"
	"interdict/pkg/domain"
	"interdict/pkg/platform/sentinel"
	pstrings "interdict/pkg/platform/strings"
)

// InMemoryStore keeps ticket documents in a mutex-guarded map. Suitable
// for tests and single-process deployments; atomicity across
// check-then-write sequences comes from the shared key locker, not from
// this store.
type InMemoryStore struct {
	mu      sync.RWMutex
	tickets map[domain.TicketID]*models.Ticket
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{tickets: make(map[domain.TicketID]*models.Ticket)}
}

func (s *InMemoryStore) Insert(_ context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.ID]; exists {
		return sentinel.ErrConflict
	}
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, ticketID domain.TicketID) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTicket(ticket), nil
}

func (s *InMemoryStore) FindByDDA(_ context.Context, ddaID domain.DDAID) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ticket := range s.tickets {
		if !ticket.DDAID.IsEmpty() && ticket.DDAID == ddaID {
			return cloneTicket(ticket), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(*models.Ticket) bool { return true }), nil
}

func (s *InMemoryStore) ListByCreator(_ context.Context, creatorID domain.AccountID) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(t *models.Ticket) bool { return t.CreatedBy == creatorID }), nil
}

func (s *InMemoryStore) ListAssigned(_ context.Context, providerID domain.AccountID) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(t *models.Ticket) bool { return t.IsAssignedTo(providerID) }), nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, ticketID domain.TicketID, status models.TicketStatus, updatedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return 0, nil
	}
	ticket.Status = status
	ticket.UpdatedAt = updatedAt
	return 1, nil
}

func (s *InMemoryStore) AppendTasks(_ context.Context, ticketID domain.TicketID, taskIDs []string, updatedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return 0, nil
	}
	ticket.Tasks = pstrings.DedupeAndTrim(append(ticket.Tasks, taskIDs...))
	ticket.UpdatedAt = updatedAt
	return 1, nil
}

func (s *InMemoryStore) Delete(_ context.Context, ticketID domain.TicketID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticketID]; !ok {
		return 0, nil
	}
	delete(s.tickets, ticketID)
	return 1, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickets), nil
}

// collect filters and orders by created_at descending. Callers hold the
// read lock.
func (s *InMemoryStore) collect(keep func(*models.Ticket) bool) []*models.Ticket {
	out := make([]*models.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		if keep(ticket) {
			out = append(out, cloneTicket(ticket))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cloneTicket(t *models.Ticket) *models.Ticket {
	clone := *t
	clone.FQDN = append([]string{}, t.FQDN...)
	clone.IPv4 = append([]string{}, t.IPv4...)
	clone.IPv6 = append([]string{}, t.IPv6...)
	clone.AssignedTo = append([]domain.AccountID{}, t.AssignedTo...)
	clone.Tasks = append([]string{}, t.Tasks...)
	return &clone
}
