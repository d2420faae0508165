// Package service implements the reporter-facing ticket operations:
// creation with admission of every candidate value, read projections
// with creator-name enrichment, task-list bookkeeping, error reports and
// administrative removal.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"interdict/internal/platform/audit"
	"interdict/internal/platform/metrics"
	"interdict/internal/ticket/classifier"
	"interdict/internal/ticket/models"
	"interdict/internal/ticket/ports"
	"interdict/pkg/domain"
	dErrors "interdict/pkg/domain-errors"
	"interdict/pkg/platform/sentinel"
	"interdict/pkg/requestcontext"
)

// CreateTicketInput carries the reporter's submission.
type CreateTicketInput struct {
	DDAID       domain.DDAID
	Description string
	FQDN        []string
	IPv4        []string
	IPv6        []string
	AssignedTo  []domain.AccountID
	Settings    models.TicketSettings
	CreatedBy   domain.AccountID
}

// TicketDetail is the full read view of one ticket.
type TicketDetail struct {
	Ticket          *models.Ticket       `json:"ticket"`
	Items           []*models.TicketItem `json:"items"`
	CreatorName     string               `json:"creator_name,omitempty"`
	AvailableValues models.GenreItemSet  `json:"available_values"`
}

type Service struct {
	tickets        ports.TicketStore
	items          ports.ItemStore
	ticketErrors   ports.TicketErrorStore
	classifier     *classifier.Service
	locker         ports.Locker
	directory      ports.AccountDirectory
	auditPublisher audit.Publisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithDirectory(directory ports.AccountDirectory) Option {
	return func(s *Service) {
		s.directory = directory
	}
}

func New(
	tickets ports.TicketStore,
	items ports.ItemStore,
	ticketErrors ports.TicketErrorStore,
	admission *classifier.Service,
	locker ports.Locker,
	opts ...Option,
) (*Service, error) {
	if tickets == nil {
		return nil, fmt.Errorf("ticket store is required")
	}
	if items == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if ticketErrors == nil {
		return nil, fmt.Errorf("ticket error store is required")
	}
	if admission == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}

	svc := &Service{
		tickets:      tickets,
		items:        items,
		ticketErrors: ticketErrors,
		classifier:   admission,
		locker:       locker,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Create validates the submission, persists the ticket in the created
// state and admits every candidate value through the classifier. A DDA
// reference may back at most one ticket.
func (s *Service) Create(ctx context.Context, input CreateTicketInput) (*models.Ticket, error) {
	if !input.DDAID.IsEmpty() {
		_, err := s.tickets.FindByDDA(ctx, input.DDAID)
		switch {
		case err == nil:
			return nil, dErrors.New(dErrors.CodeConflict, "a ticket already references this DDA instance")
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check DDA reference")
		}
	}

	ticket, err := models.NewTicket(
		input.DDAID,
		input.Description,
		input.FQDN, input.IPv4, input.IPv6,
		input.AssignedTo,
		input.Settings,
		input.CreatedBy,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	if err := s.tickets.Insert(ctx, ticket); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "ticket identifier already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert ticket")
	}

	if err := s.admitAll(ctx, ticket); err != nil {
		// Roll the ticket back so a failed admission leaves nothing
		// partially blocked.
		if _, delErr := s.items.DeleteByTicket(ctx, ticket.ID); delErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to roll back ticket items", "ticket_id", ticket.ID, "error", delErr)
		}
		if _, delErr := s.tickets.Delete(ctx, ticket.ID); delErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to roll back ticket", "ticket_id", ticket.ID, "error", delErr)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TicketsCreated.Inc()
	}
	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionTicketCreated,
		TicketID:  ticket.ID,
		AccountID: ticket.CreatedBy,
		Detail: map[string]string{
			"providers": fmt.Sprintf("%d", len(ticket.AssignedTo)),
			"values":    fmt.Sprintf("%d", len(ticket.FQDN)+len(ticket.IPv4)+len(ticket.IPv6)),
		},
	})

	return ticket, nil
}

func (s *Service) admitAll(ctx context.Context, ticket *models.Ticket) error {
	for _, genre := range models.Genres {
		var values []string
		switch genre {
		case models.GenreFQDN:
			values = ticket.FQDN
		case models.GenreIPv4:
			values = ticket.IPv4
		case models.GenreIPv6:
			values = ticket.IPv6
		}
		for _, value := range values {
			if _, err := s.classifier.Admit(ctx, ticket, genre, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get returns the full ticket view: document, items, available value
// sets and the resolved creator name.
func (s *Service) Get(ctx context.Context, ticketID domain.TicketID) (*TicketDetail, error) {
	if ticketID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "ticket_id is required")
	}

	ticket, err := s.tickets.Find(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ticket not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket")
	}

	items, err := s.items.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ticket items")
	}
	available, err := s.items.ListAvailableByTicket(ctx, ticketID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list available items")
	}

	return &TicketDetail{
		Ticket:          ticket,
		Items:           items,
		CreatorName:     s.resolveName(ctx, ticket.CreatedBy),
		AvailableValues: models.Collect(available),
	}, nil
}

// List returns every ticket, most recent first, with creator names
// resolved through the directory.
func (s *Service) List(ctx context.Context) ([]*TicketDetail, error) {
	tickets, err := s.tickets.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tickets")
	}
	return s.summaries(ctx, tickets), nil
}

// ListByCreator returns the reporter's tickets, most recent first.
func (s *Service) ListByCreator(ctx context.Context, creatorID domain.AccountID) ([]*TicketDetail, error) {
	if creatorID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "creator_id is required")
	}

	tickets, err := s.tickets.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tickets")
	}
	return s.summaries(ctx, tickets), nil
}

func (s *Service) summaries(ctx context.Context, tickets []*models.Ticket) []*TicketDetail {
	out := make([]*TicketDetail, len(tickets))
	for i, ticket := range tickets {
		out[i] = &TicketDetail{
			Ticket:          ticket,
			CreatorName:     s.resolveName(ctx, ticket.CreatedBy),
			AvailableValues: models.NewGenreItemSet(),
		}
	}
	return out
}

// AppendTasks records scheduled task references on the ticket with set
// semantics.
func (s *Service) AppendTasks(ctx context.Context, ticketID domain.TicketID, taskIDs []string) error {
	if ticketID.IsEmpty() {
		return dErrors.New(dErrors.CodeBadRequest, "ticket_id is required")
	}
	if len(taskIDs) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one task reference is required")
	}

	count, err := s.tickets.AppendTasks(ctx, ticketID, taskIDs, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append tasks")
	}
	if count == 0 {
		return dErrors.New(dErrors.CodeNotFound, "ticket not found")
	}
	return nil
}

// Remove deletes the ticket with its items and error reports. Runs under
// the ticket's lock so it cannot interleave with a lifecycle transition
// or a guarded item update.
func (s *Service) Remove(ctx context.Context, ticketID domain.TicketID) error {
	if ticketID.IsEmpty() {
		return dErrors.New(dErrors.CodeBadRequest, "ticket_id is required")
	}

	err := s.locker.WithLock(ctx, ports.TicketKey(ticketID), func(ctx context.Context) error {
		count, err := s.tickets.Delete(ctx, ticketID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete ticket")
		}
		if count == 0 {
			return dErrors.New(dErrors.CodeNotFound, "ticket not found")
		}
		if _, err := s.items.DeleteByTicket(ctx, ticketID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete ticket items")
		}
		if _, err := s.ticketErrors.DeleteByTicket(ctx, ticketID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete error reports")
		}
		return nil
	})
	if err != nil {
		return err
	}

	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionTicketRemoved,
		TicketID:  ticketID,
		AccountID: requestcontext.AccountID(ctx),
	})
	return nil
}

// ReportError files an error report against the ticket and flips
// is_error on every named item. The flag flip is the only item mutation:
// classification stays as admitted.
func (s *Service) ReportError(ctx context.Context, ticketID domain.TicketID, fqdn, ipv4, ipv6 []string, createdBy domain.AccountID) (*models.TicketError, error) {
	if _, err := s.tickets.Find(ctx, ticketID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ticket not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket")
	}

	report, err := models.NewTicketError(ticketID, fqdn, ipv4, ipv6, createdBy, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.ticketErrors.Insert(ctx, report); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert error report")
	}

	for _, genre := range models.Genres {
		for _, value := range report.Values(genre) {
			if _, err := s.classifier.SetError(ctx, ticketID, value, true); err != nil {
				return nil, err
			}
		}
	}

	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionErrorReported,
		TicketID:  ticketID,
		AccountID: createdBy,
		Detail: map[string]string{
			"values": fmt.Sprintf("%d", len(report.FQDN)+len(report.IPv4)+len(report.IPv6)),
		},
	})

	return report, nil
}

// ErrorReports lists the ticket's error reports, oldest first.
func (s *Service) ErrorReports(ctx context.Context, ticketID domain.TicketID) ([]*models.TicketError, error) {
	if ticketID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "ticket_id is required")
	}

	reports, err := s.ticketErrors.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list error reports")
	}
	return reports, nil
}

func (s *Service) resolveName(ctx context.Context, accountID domain.AccountID) string {
	if s.directory == nil {
		return ""
	}
	name, err := s.directory.ResolveName(ctx, accountID)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to resolve account name", "account_id", accountID, "error", err)
		}
		return ""
	}
	return name
}
