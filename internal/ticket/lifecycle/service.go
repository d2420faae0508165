// Package lifecycle owns ticket status transitions. The state machine
// only moves forward: created -> open -> closed, one edge per call.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"interdict/internal/platform/audit"
	"interdict/internal/platform/metrics"
	"interdict/internal/ticket/models"
	"interdict/internal/ticket/ports"
	"interdict/pkg/domain"
	dErrors "interdict/pkg/domain-errors"
	"interdict/pkg/platform/sentinel"
	"interdict/pkg/requestcontext"
)

type Service struct {
	tickets        ports.TicketStore
	locker         ports.Locker
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

func New(tickets ports.TicketStore, locker ports.Locker, opts ...Option) (*Service, error) {
	if tickets == nil {
		return nil, fmt.Errorf("ticket store is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}

	svc := &Service{
		tickets: tickets,
		locker:  locker,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Advance moves the ticket to target, which must be the successor of the
// ticket's current status. The transition runs under the ticket's lock
// so concurrent calls observe a consistent current status; the losing
// caller of a race gets an invalid-transition error, not a double
// transition.
func (s *Service) Advance(ctx context.Context, ticketID domain.TicketID, target models.TicketStatus) (*models.Ticket, error) {
	if ticketID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "ticket_id is required")
	}
	if !target.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid ticket status")
	}

	var advanced *models.Ticket
	err := s.locker.WithLock(ctx, ports.TicketKey(ticketID), func(ctx context.Context) error {
		ticket, err := s.tickets.Find(ctx, ticketID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "ticket not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket")
		}

		if !ticket.Status.CanAdvanceTo(target) {
			return dErrors.New(dErrors.CodeInvalidTransition,
				fmt.Sprintf("cannot advance ticket from '%s' to '%s'", ticket.Status, target))
		}

		now := requestcontext.Now(ctx)
		count, err := s.tickets.UpdateStatus(ctx, ticketID, target, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update ticket status")
		}
		if count == 0 {
			return dErrors.New(dErrors.CodeNotFound, "ticket not found")
		}

		ticket.Status = target
		ticket.UpdatedAt = now
		advanced = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TicketTransitions.WithLabelValues(target.String()).Inc()
	}
	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionTicketAdvanced,
		TicketID:  ticketID,
		AccountID: requestcontext.AccountID(ctx),
		Detail:    map[string]string{"status": target.String()},
	})

	return advanced, nil
}

// Open advances a created ticket into the open state.
func (s *Service) Open(ctx context.Context, ticketID domain.TicketID) (*models.Ticket, error) {
	return s.Advance(ctx, ticketID, models.TicketStatusOpen)
}

// Close advances an open ticket into the terminal closed state.
func (s *Service) Close(ctx context.Context, ticketID domain.TicketID) (*models.Ticket, error) {
	return s.Advance(ctx, ticketID, models.TicketStatusClosed)
}
