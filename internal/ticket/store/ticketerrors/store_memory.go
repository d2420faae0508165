package ticketerrors

import (
	"context"
	"sort"
	"sync"

	"interdict/internal/ticket/models"
	"interdict/pkg/domain"
	"interdict/pkg/platform/sentinel"
)

// InMemoryStore keeps error reports keyed by their identifier.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[domain.TicketErrorID]*models.TicketError
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{reports: make(map[domain.TicketErrorID]*models.TicketError)}
}

func (s *InMemoryStore) Insert(_ context.Context, report *models.TicketError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[report.ID]; exists {
		return sentinel.ErrConflict
	}
	s.reports[report.ID] = cloneReport(report)
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, reportID domain.TicketErrorID) (*models.TicketError, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneReport(report), nil
}

func (s *InMemoryStore) ListByTicket(_ context.Context, ticketID domain.TicketID) ([]*models.TicketError, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TicketError
	for _, report := range s.reports {
		if report.TicketID == ticketID {
			out = append(out, cloneReport(report))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) DeleteByTicket(_ context.Context, ticketID domain.TicketID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, report := range s.reports {
		if report.TicketID == ticketID {
			delete(s.reports, id)
			count++
		}
	}
	return count, nil
}

func cloneReport(r *models.TicketError) *models.TicketError {
	clone := *r
	clone.FQDN = append([]string{}, r.FQDN...)
	clone.IPv4 = append([]string{}, r.IPv4...)
	clone.IPv6 = append([]string{}, r.IPv6...)
	return &clone
}
