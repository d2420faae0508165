package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"interdict/internal/directory"
	"interdict/internal/platform/audit"
	auditmemory "interdict/internal/platform/audit/memory"
	"interdict/internal/ticket/classifier"
	"interdict/internal/ticket/models"
	itemstore "interdict/internal/ticket/store/items"
	"interdict/internal/ticket/store/lock"
	errorstore "interdict/internal/ticket/store/ticketerrors"
	ticketstore "interdict/internal/ticket/store/tickets"
	whiteliststore "interdict/internal/ticket/store/whitelist"
	"interdict/pkg/domain"
	dErrors "interdict/pkg/domain-errors"
	"interdict/pkg/requestcontext"
)

// =============================================================================
// Ticket Service Test Suite
// =============================================================================

type TicketServiceSuite struct {
	suite.Suite
	tickets      *ticketstore.InMemoryStore
	items        *itemstore.InMemoryStore
	whitelist    *whiteliststore.InMemoryStore
	ticketErrors *errorstore.InMemoryStore
	audit        *auditmemory.Publisher
	service      *Service

	ctx       context.Context
	now       time.Time
	reporter  domain.AccountID
	providerA domain.AccountID
}

func TestTicketServiceSuite(t *testing.T) {
	suite.Run(t, new(TicketServiceSuite))
}

func (s *TicketServiceSuite) SetupTest() {
	s.tickets = ticketstore.NewInMemory()
	s.items = itemstore.NewInMemory()
	s.whitelist = whiteliststore.NewInMemory()
	s.ticketErrors = errorstore.NewInMemory()
	s.audit = auditmemory.New()
	locker := lock.NewKeyedLocker()

	admission, err := classifier.New(s.items, s.whitelist, locker)
	s.Require().NoError(err)

	s.reporter = domain.AccountID("reporter-1")
	s.providerA = domain.AccountID("provider-a")

	names := directory.NewStatic(map[domain.AccountID]string{
		s.reporter: "AGCOM Reporter",
	})

	s.service, err = New(s.tickets, s.items, s.ticketErrors, admission, locker,
		WithAuditPublisher(s.audit),
		WithDirectory(names),
	)
	s.Require().NoError(err)

	s.now = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *TicketServiceSuite) createTicket(input CreateTicketInput) *models.Ticket {
	if input.CreatedBy.IsEmpty() {
		input.CreatedBy = s.reporter
	}
	if len(input.AssignedTo) == 0 {
		input.AssignedTo = []domain.AccountID{s.providerA}
	}
	ticket, err := s.service.Create(s.ctx, input)
	s.Require().NoError(err)
	return ticket
}

// =============================================================================
// Create Tests
// =============================================================================

func (s *TicketServiceSuite) TestCreate() {
	s.Run("creates ticket and admits every value", func() {
		ticket := s.createTicket(CreateTicketInput{
			Description: "illegal stream mirror",
			FQDN:        []string{"Evil.Example", "evil.example", "bad.example"},
			IPv4:        []string{"192.0.2.10"},
		})

		s.Equal(models.TicketStatusCreated, ticket.Status)
		s.Equal([]string{"evil.example", "bad.example"}, ticket.FQDN, "fqdn collapsed case-insensitively")
		s.Equal(models.DefaultTicketSettings(), ticket.Settings)

		items, err := s.items.ListByTicket(s.ctx, ticket.ID)
		s.Require().NoError(err)
		s.Len(items, 3, "one item per value per provider")
	})

	s.Run("requires a provider", func() {
		_, err := s.service.Create(s.ctx, CreateTicketInput{
			Description: "no providers",
			FQDN:        []string{"evil.example"},
			CreatedBy:   s.reporter,
		})
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("DDA reference is unique", func() {
		s.createTicket(CreateTicketInput{
			DDAID:       "dda-100",
			Description: "first",
			FQDN:        []string{"first.example"},
		})

		_, err := s.service.Create(s.ctx, CreateTicketInput{
			DDAID:       "dda-100",
			Description: "second",
			FQDN:        []string{"second.example"},
			AssignedTo:  []domain.AccountID{s.providerA},
			CreatedBy:   s.reporter,
		})
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("creation is audited", func() {
		s.createTicket(CreateTicketInput{
			Description: "audited",
			FQDN:        []string{"audited.example"},
		})
		s.NotEmpty(s.audit.ByAction(audit.ActionTicketCreated))
	})
}

// =============================================================================
// Read Projections
// =============================================================================

func (s *TicketServiceSuite) TestGet() {
	ticket := s.createTicket(CreateTicketInput{
		Description: "detail view",
		FQDN:        []string{"evil.example"},
		IPv4:        []string{"192.0.2.10"},
	})

	detail, err := s.service.Get(s.ctx, ticket.ID)
	s.NoError(err)
	s.Equal(ticket.ID, detail.Ticket.ID)
	s.Equal("AGCOM Reporter", detail.CreatorName)
	s.Len(detail.Items, 2)
	s.Equal([]string{"evil.example"}, detail.AvailableValues.FQDN)
	s.Equal([]string{"192.0.2.10"}, detail.AvailableValues.IPv4)

	s.Run("unknown ticket returns not found", func() {
		_, err := s.service.Get(s.ctx, domain.NewTicketID())
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *TicketServiceSuite) TestList() {
	s.createTicket(CreateTicketInput{Description: "one", FQDN: []string{"one.example"}})
	s.createTicket(CreateTicketInput{
		Description: "two",
		FQDN:        []string{"two.example"},
		CreatedBy:   domain.AccountID("reporter-2"),
	})

	s.Run("List returns every ticket enriched", func() {
		all, err := s.service.List(s.ctx)
		s.NoError(err)
		s.Len(all, 2)
		for _, detail := range all {
			if detail.Ticket.CreatedBy == s.reporter {
				s.Equal("AGCOM Reporter", detail.CreatorName)
			} else {
				s.Empty(detail.CreatorName, "unknown accounts resolve to no name")
			}
		}
	})

	s.Run("ListByCreator filters", func() {
		mine, err := s.service.ListByCreator(s.ctx, s.reporter)
		s.NoError(err)
		s.Len(mine, 1)
		s.Equal("one", mine[0].Ticket.Description)
	})
}

// =============================================================================
// Task Bookkeeping
// =============================================================================

func (s *TicketServiceSuite) TestAppendTasks() {
	ticket := s.createTicket(CreateTicketInput{Description: "tasks", FQDN: []string{"t.example"}})

	s.NoError(s.service.AppendTasks(s.ctx, ticket.ID, []string{"task-1", "task-2"}))
	s.NoError(s.service.AppendTasks(s.ctx, ticket.ID, []string{"task-2", "task-3"}))

	stored, err := s.tickets.Find(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"task-1", "task-2", "task-3"}, stored.Tasks)

	s.Run("unknown ticket returns not found", func() {
		err := s.service.AppendTasks(s.ctx, domain.NewTicketID(), []string{"task-9"})
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Removal Cascade
// =============================================================================

func (s *TicketServiceSuite) TestRemove() {
	ticket := s.createTicket(CreateTicketInput{
		Description: "to remove",
		FQDN:        []string{"gone.example"},
	})
	_, err := s.service.ReportError(s.ctx, ticket.ID, []string{"gone.example"}, nil, nil, s.reporter)
	s.Require().NoError(err)

	s.NoError(s.service.Remove(s.ctx, ticket.ID))

	_, err = s.tickets.Find(s.ctx, ticket.ID)
	s.Error(err)

	items, err := s.items.ListByTicket(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Empty(items)

	reports, err := s.ticketErrors.ListByTicket(s.ctx, ticket.ID)
	s.Require().NoError(err)
	s.Empty(reports)

	s.Run("removing twice returns not found", func() {
		err := s.service.Remove(s.ctx, ticket.ID)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("a removed value can be admitted again", func() {
		fresh := s.createTicket(CreateTicketInput{
			Description: "fresh",
			FQDN:        []string{"gone.example"},
		})
		items, err := s.items.ListByTicket(s.ctx, fresh.ID)
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.False(items[0].IsDuplicate)
	})
}

// =============================================================================
// Error Reports
// =============================================================================

func (s *TicketServiceSuite) TestReportError() {
	ticket := s.createTicket(CreateTicketInput{
		Description: "with errors",
		FQDN:        []string{"wrong.example", "right.example"},
	})

	report, err := s.service.ReportError(s.ctx, ticket.ID, []string{"wrong.example"}, nil, nil, s.reporter)
	s.NoError(err)
	s.Equal(ticket.ID, report.TicketID)

	s.Run("named items carry is_error", func() {
		items, err := s.items.ListByTicket(s.ctx, ticket.ID)
		s.Require().NoError(err)
		for _, item := range items {
			s.Equal(item.Value == "wrong.example", item.IsError)
		}
	})

	s.Run("reports are listed oldest first", func() {
		reports, err := s.service.ErrorReports(s.ctx, ticket.ID)
		s.NoError(err)
		s.Len(reports, 1)
	})

	s.Run("empty report rejected", func() {
		_, err := s.service.ReportError(s.ctx, ticket.ID, nil, nil, nil, s.reporter)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown ticket rejected", func() {
		_, err := s.service.ReportError(s.ctx, domain.NewTicketID(), []string{"x.example"}, nil, nil, s.reporter)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
