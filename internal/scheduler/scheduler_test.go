package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"interdict/internal/ticket/lifecycle"
	"interdict/internal/ticket/models"
	"interdict/internal/ticket/store/lock"
	ticketstore "interdict/internal/ticket/store/tickets"
	"interdict/pkg/domain"
)

// =============================================================================
// Scheduler Test Suite
// =============================================================================

type SchedulerSuite struct {
	suite.Suite
	store     *ticketstore.InMemoryStore
	scheduler *Scheduler

	ctx  context.Context
	base time.Time
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.store = ticketstore.NewInMemory()

	lc, err := lifecycle.New(s.store, lock.NewKeyedLocker())
	s.Require().NoError(err)
	s.scheduler, err = New(s.store, lc)
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.base = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
}

func (s *SchedulerSuite) newTicket(status models.TicketStatus, createdAt time.Time) *models.Ticket {
	ticket, err := models.NewTicket(
		"", "test case", []string{"evil.example"}, nil, nil,
		[]domain.AccountID{"provider-a"},
		models.TicketSettings{
			RevokeTime:      30 * time.Minute,
			AutocloseTime:   24 * time.Hour,
			ReportErrorTime: 72 * time.Hour,
		},
		"reporter-1", createdAt,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Insert(s.ctx, ticket))

	if status != models.TicketStatusCreated {
		_, err = s.store.UpdateStatus(s.ctx, ticket.ID, status, createdAt)
		s.Require().NoError(err)
	}
	return ticket
}

func (s *SchedulerSuite) statusOf(ticketID domain.TicketID) models.TicketStatus {
	ticket, err := s.store.Find(s.ctx, ticketID)
	s.Require().NoError(err)
	return ticket.Status
}

// =============================================================================
// Sweep Tests
// =============================================================================

func (s *SchedulerSuite) TestSweep() {
	s.Run("created ticket opens after the revoke hold", func() {
		due := s.newTicket(models.TicketStatusCreated, s.base.Add(-31*time.Minute))
		early := s.newTicket(models.TicketStatusCreated, s.base.Add(-5*time.Minute))

		s.NoError(s.scheduler.Sweep(s.ctx, s.base))

		s.Equal(models.TicketStatusOpen, s.statusOf(due.ID))
		s.Equal(models.TicketStatusCreated, s.statusOf(early.ID))
	})

	s.Run("open ticket closes after the autoclose window", func() {
		due := s.newTicket(models.TicketStatusOpen, s.base.Add(-25*time.Hour))
		early := s.newTicket(models.TicketStatusOpen, s.base.Add(-2*time.Hour))

		s.NoError(s.scheduler.Sweep(s.ctx, s.base))

		s.Equal(models.TicketStatusClosed, s.statusOf(due.ID))
		s.Equal(models.TicketStatusOpen, s.statusOf(early.ID))
	})

	s.Run("closed tickets never move", func() {
		closed := s.newTicket(models.TicketStatusClosed, s.base.Add(-48*time.Hour))

		s.NoError(s.scheduler.Sweep(s.ctx, s.base))

		s.Equal(models.TicketStatusClosed, s.statusOf(closed.ID))
	})

	s.Run("a very old created ticket moves one edge per sweep", func() {
		stale := s.newTicket(models.TicketStatusCreated, s.base.Add(-72*time.Hour))

		s.NoError(s.scheduler.Sweep(s.ctx, s.base))
		s.Equal(models.TicketStatusOpen, s.statusOf(stale.ID))

		s.NoError(s.scheduler.Sweep(s.ctx, s.base))
		s.Equal(models.TicketStatusClosed, s.statusOf(stale.ID))
	})

	s.Run("deadlines anchor to creation time", func() {
		// Opened late or not, the autoclose deadline is created_at +
		// revoke + autoclose.
		ticket := s.newTicket(models.TicketStatusOpen, s.base.Add(-24*time.Hour-29*time.Minute))

		s.NoError(s.scheduler.Sweep(s.ctx, s.base))
		s.Equal(models.TicketStatusOpen, s.statusOf(ticket.ID))

		s.NoError(s.scheduler.Sweep(s.ctx, s.base.Add(2*time.Minute)))
		s.Equal(models.TicketStatusClosed, s.statusOf(ticket.ID))
	})
}
