package projection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"interdict/internal/ticket/classifier"
	"interdict/internal/ticket/models"
	itemstore "interdict/internal/ticket/store/items"
	"interdict/internal/ticket/store/lock"
	ticketstore "interdict/internal/ticket/store/tickets"
	whiteliststore "interdict/internal/ticket/store/whitelist"
	"interdict/pkg/domain"
	"interdict/pkg/requestcontext"
)

// =============================================================================
// Projection Service Test Suite
// =============================================================================
// Providers must never see a value they were not assigned, and must
// never get an error where the answer is simply "nothing to do".

type ProjectionSuite struct {
	suite.Suite
	tickets   *ticketstore.InMemoryStore
	items     *itemstore.InMemoryStore
	whitelist *whiteliststore.InMemoryStore
	admit     *classifier.Service
	service   *Service

	ctx       context.Context
	now       time.Time
	providerA domain.AccountID
	providerB domain.AccountID
	stranger  domain.AccountID
}

func TestProjectionSuite(t *testing.T) {
	suite.Run(t, new(ProjectionSuite))
}

func (s *ProjectionSuite) SetupTest() {
	s.tickets = ticketstore.NewInMemory()
	s.items = itemstore.NewInMemory()
	s.whitelist = whiteliststore.NewInMemory()
	locker := lock.NewKeyedLocker()

	var err error
	s.admit, err = classifier.New(s.items, s.whitelist, locker)
	s.Require().NoError(err)
	s.service, err = New(s.tickets, s.items, s.whitelist)
	s.Require().NoError(err)

	s.now = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.providerA = domain.AccountID("provider-a")
	s.providerB = domain.AccountID("provider-b")
	s.stranger = domain.AccountID("provider-x")
}

// newTicket creates a ticket assigned to providerA and providerB, admits
// the given values and moves it to the given status.
func (s *ProjectionSuite) newTicket(status models.TicketStatus, fqdn, ipv4 []string) *models.Ticket {
	ticket, err := models.NewTicket(
		"", "test case", fqdn, ipv4, nil,
		[]domain.AccountID{s.providerA, s.providerB},
		models.TicketSettings{}, "reporter-1", s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.tickets.Insert(s.ctx, ticket))

	for _, value := range fqdn {
		_, err = s.admit.Admit(s.ctx, ticket, models.GenreFQDN, value)
		s.Require().NoError(err)
	}
	for _, value := range ipv4 {
		_, err = s.admit.Admit(s.ctx, ticket, models.GenreIPv4, value)
		s.Require().NoError(err)
	}

	if status != models.TicketStatusCreated {
		_, err = s.tickets.UpdateStatus(s.ctx, ticket.ID, status, s.now)
		s.Require().NoError(err)
		ticket.Status = status
	}
	return ticket
}

// =============================================================================
// Single Ticket Projection
// =============================================================================

func (s *ProjectionSuite) TestVisibleTicketItems() {
	s.Run("assigned provider sees available values per genre", func() {
		ticket := s.newTicket(models.TicketStatusOpen,
			[]string{"evil.example", "bad.example"}, []string{"192.0.2.10"})

		set, err := s.service.VisibleTicketItems(s.ctx, ticket.ID, s.providerA)
		s.NoError(err)
		s.Equal([]string{"bad.example", "evil.example"}, set.FQDN)
		s.Equal([]string{"192.0.2.10"}, set.IPv4)
		s.Empty(set.IPv6)
		s.NotNil(set.IPv6)
	})

	s.Run("created ticket projects empty", func() {
		ticket := s.newTicket(models.TicketStatusCreated, []string{"held.example"}, nil)

		set, err := s.service.VisibleTicketItems(s.ctx, ticket.ID, s.providerA)
		s.NoError(err)
		s.True(set.IsEmpty())
	})

	s.Run("closed ticket stays visible", func() {
		ticket := s.newTicket(models.TicketStatusClosed, []string{"closed.example"}, nil)

		set, err := s.service.VisibleTicketItems(s.ctx, ticket.ID, s.providerA)
		s.NoError(err)
		s.Equal([]string{"closed.example"}, set.FQDN)
	})

	s.Run("unassigned provider projects empty, not error", func() {
		ticket := s.newTicket(models.TicketStatusOpen, []string{"evil2.example"}, nil)

		set, err := s.service.VisibleTicketItems(s.ctx, ticket.ID, s.stranger)
		s.NoError(err)
		s.True(set.IsEmpty())
	})

	s.Run("unavailable items are invisible", func() {
		ticket := s.newTicket(models.TicketStatusOpen, []string{"mixed.example", "errored.example"}, nil)
		_, err := s.items.SetErrorFlag(s.ctx, ticket.ID, "errored.example", true, s.now)
		s.Require().NoError(err)

		set, err := s.service.VisibleTicketItems(s.ctx, ticket.ID, s.providerA)
		s.NoError(err)
		s.Equal([]string{"mixed.example"}, set.FQDN)
	})

	s.Run("unknown ticket is indistinguishable from an unassigned one", func() {
		set, err := s.service.VisibleTicketItems(s.ctx, domain.NewTicketID(), s.providerA)
		s.NoError(err)
		s.True(set.IsEmpty())
	})
}

// =============================================================================
// Workload Projection
// =============================================================================

func (s *ProjectionSuite) TestVisibleItems() {
	s.Run("union across actionable assigned tickets", func() {
		s.newTicket(models.TicketStatusOpen, []string{"a.example"}, []string{"192.0.2.1"})
		s.newTicket(models.TicketStatusClosed, []string{"b.example"}, nil)
		s.newTicket(models.TicketStatusCreated, []string{"held.example"}, nil)

		set, err := s.service.VisibleItems(s.ctx, s.providerA)
		s.NoError(err)
		s.Equal([]string{"a.example", "b.example"}, set.FQDN)
		s.Equal([]string{"192.0.2.1"}, set.IPv4)
	})

	s.Run("duplicates collapse across tickets", func() {
		// Second ticket's admission of the same value classifies as
		// duplicate, so only the winner's copy is visible anyway.
		s.newTicket(models.TicketStatusOpen, []string{"dup.example"}, nil)
		s.newTicket(models.TicketStatusOpen, []string{"dup.example"}, nil)

		set, err := s.service.VisibleItems(s.ctx, s.providerA)
		s.NoError(err)
		count := 0
		for _, v := range set.FQDN {
			if v == "dup.example" {
				count++
			}
		}
		s.Equal(1, count)
	})

	s.Run("unknown provider gets the empty set", func() {
		set, err := s.service.VisibleItems(s.ctx, s.stranger)
		s.NoError(err)
		s.True(set.IsEmpty())
	})
}

// =============================================================================
// Read-Only Queries
// =============================================================================

func (s *ProjectionSuite) TestExistsQueries() {
	s.newTicket(models.TicketStatusOpen, []string{"known.example"}, nil)

	entry, err := models.NewWhitelistEntry(models.GenreFQDN, "cdn.example", "reporter-1", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.whitelist.Insert(s.ctx, entry))

	s.Run("ExistsDuplicate", func() {
		exists, err := s.service.ExistsDuplicate(s.ctx, models.GenreFQDN, "known.example")
		s.NoError(err)
		s.True(exists)

		exists, err = s.service.ExistsDuplicate(s.ctx, models.GenreIPv4, "known.example")
		s.NoError(err)
		s.False(exists)
	})

	s.Run("ExistsInWhitelist is keyed on value alone", func() {
		exists, err := s.service.ExistsInWhitelist(s.ctx, "cdn.example")
		s.NoError(err)
		s.True(exists)

		exists, err = s.service.ExistsInWhitelist(s.ctx, "other.example")
		s.NoError(err)
		s.False(exists)

		// Deactivated entries still count: the query answers "is this
		// value known to the whitelist", not "would it win admission".
		_, err = s.whitelist.SetActiveFlag(s.ctx, "cdn.example", false, s.now)
		s.Require().NoError(err)
		exists, err = s.service.ExistsInWhitelist(s.ctx, "cdn.example")
		s.NoError(err)
		s.True(exists)
	})

	s.Run("ActiveValues", func() {
		values, err := s.service.ActiveValues(s.ctx, models.GenreFQDN)
		s.NoError(err)
		s.Contains(values, "known.example")

		values, err = s.service.ActiveValues(s.ctx, models.GenreIPv6)
		s.NoError(err)
		s.Empty(values)
		s.NotNil(values)
	})
}
