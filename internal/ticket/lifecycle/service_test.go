package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"interdict/internal/platform/audit"
	auditmemory "interdict/internal/platform/audit/memory"
	"interdict/internal/ticket/models"
	"interdict/internal/ticket/store/lock"
	ticketstore "interdict/internal/ticket/store/tickets"
	"interdict/pkg/domain"
	dErrors "interdict/pkg/domain-errors"
	"interdict/pkg/requestcontext"
)

// =============================================================================
// Lifecycle Service Test Suite
// =============================================================================

type LifecycleSuite struct {
	suite.Suite
	store   *ticketstore.InMemoryStore
	audit   *auditmemory.Publisher
	service *Service

	ctx context.Context
	now time.Time
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.store = ticketstore.NewInMemory()
	s.audit = auditmemory.New()

	var err error
	s.service, err = New(s.store, lock.NewKeyedLocker(),
		WithAuditPublisher(s.audit),
	)
	s.Require().NoError(err)

	s.now = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *LifecycleSuite) newTicket() *models.Ticket {
	ticket, err := models.NewTicket(
		"", "test case", []string{"evil.example"}, nil, nil,
		[]domain.AccountID{"provider-a"},
		models.TicketSettings{}, "reporter-1", s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Insert(s.ctx, ticket))
	return ticket
}

func (s *LifecycleSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, lock.NewKeyedLocker())
		s.Error(err)
	})

	s.Run("nil locker returns error", func() {
		_, err := New(s.store, nil)
		s.Error(err)
	})
}

// =============================================================================
// Advance Tests
// =============================================================================

func (s *LifecycleSuite) TestAdvance() {
	s.Run("created advances to open", func() {
		ticket := s.newTicket()

		advanced, err := s.service.Advance(s.ctx, ticket.ID, models.TicketStatusOpen)
		s.NoError(err)
		s.Equal(models.TicketStatusOpen, advanced.Status)
		s.Equal(s.now, advanced.UpdatedAt)

		stored, err := s.store.Find(s.ctx, ticket.ID)
		s.Require().NoError(err)
		s.Equal(models.TicketStatusOpen, stored.Status)
	})

	s.Run("open advances to closed", func() {
		ticket := s.newTicket()
		_, err := s.service.Advance(s.ctx, ticket.ID, models.TicketStatusOpen)
		s.Require().NoError(err)

		advanced, err := s.service.Advance(s.ctx, ticket.ID, models.TicketStatusClosed)
		s.NoError(err)
		s.Equal(models.TicketStatusClosed, advanced.Status)
	})

	s.Run("created cannot skip to closed", func() {
		ticket := s.newTicket()

		_, err := s.service.Advance(s.ctx, ticket.ID, models.TicketStatusClosed)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("closed is terminal", func() {
		ticket := s.newTicket()
		_, err := s.service.Advance(s.ctx, ticket.ID, models.TicketStatusOpen)
		s.Require().NoError(err)
		_, err = s.service.Advance(s.ctx, ticket.ID, models.TicketStatusClosed)
		s.Require().NoError(err)

		_, err = s.service.Advance(s.ctx, ticket.ID, models.TicketStatusOpen)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("no backward transition", func() {
		ticket := s.newTicket()
		_, err := s.service.Advance(s.ctx, ticket.ID, models.TicketStatusOpen)
		s.Require().NoError(err)

		_, err = s.service.Advance(s.ctx, ticket.ID, models.TicketStatusCreated)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("unknown ticket returns not found", func() {
		_, err := s.service.Advance(s.ctx, domain.NewTicketID(), models.TicketStatusOpen)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid target status rejected", func() {
		ticket := s.newTicket()
		_, err := s.service.Advance(s.ctx, ticket.ID, models.TicketStatus("reopened"))
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("successful transition is audited", func() {
		ticket := s.newTicket()
		_, err := s.service.Advance(s.ctx, ticket.ID, models.TicketStatusOpen)
		s.Require().NoError(err)

		events := s.audit.ByAction(audit.ActionTicketAdvanced)
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(ticket.ID, last.TicketID)
		s.Equal("open", last.Detail["status"])
	})
}

func (s *LifecycleSuite) TestAdvanceConcurrent() {
	// Two racers on the same edge: exactly one wins, the other observes
	// an invalid transition.
	ticket := s.newTicket()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = s.service.Advance(s.ctx, ticket.ID, models.TicketStatusOpen)
		}()
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		}
	}
	s.Equal(1, winners)
}

// =============================================================================
// Helper Transition Tests
// =============================================================================

func (s *LifecycleSuite) TestOpenAndClose() {
	ticket := s.newTicket()

	opened, err := s.service.Open(s.ctx, ticket.ID)
	s.NoError(err)
	s.Equal(models.TicketStatusOpen, opened.Status)

	closed, err := s.service.Close(s.ctx, ticket.ID)
	s.NoError(err)
	s.Equal(models.TicketStatusClosed, closed.Status)
}
