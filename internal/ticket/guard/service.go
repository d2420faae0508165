// Package guard applies provider processing-status reports. A report
// only lands on an available item owned by the reporting provider, and
// only while the owning ticket is workable; anything else is a conflict,
// reported as zero rows touched rather than an error.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"interdict/internal/platform/audit"
	"interdict/internal/platform/metrics"
	"interdict/internal/ticket/models"
	"interdict/internal/ticket/ports"
	"interdict/pkg/domain"
	dErrors "interdict/pkg/domain-errors"
	"interdict/pkg/platform/sentinel"
	"interdict/pkg/requestcontext"
)

// Report is a provider's statement about one value it was asked to
// action.
type Report struct {
	ProviderID domain.AccountID
	Value      string
	Status     models.ItemStatus
	Reason     string
	Note       string
	Timestamp  *time.Time
}

type Service struct {
	tickets        ports.TicketStore
	items          ports.ItemStore
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

func New(tickets ports.TicketStore, items ports.ItemStore, locker ports.Locker, opts ...Option) (*Service, error) {
	if tickets == nil {
		return nil, fmt.Errorf("ticket store is required")
	}
	if items == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}

	svc := &Service{
		tickets: tickets,
		items:   items,
		locker:  locker,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Apply lands the report on the provider's available item. Returns the
// number of items updated: 1 on success, 0 when no available item
// matches or the owning ticket is still in its created hold. The dedup
// invariant keeps the candidate unique in steady state; when
// deactivation cycles leave available siblings, each candidate is
// judged against its own parent ticket, so an item on a created ticket
// is never touched. The status write runs under the ticket's lock so
// it cannot interleave with a lifecycle transition or a cascade
// removal.
func (s *Service) Apply(ctx context.Context, report Report) (int, error) {
	if report.ProviderID.IsEmpty() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "provider_id is required")
	}
	if report.Value == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "value cannot be empty")
	}
	if !report.Status.IsValid() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid item status")
	}

	candidates, err := s.items.ListAvailableByProvider(ctx, report.ProviderID, report.Value)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to locate item")
	}

	for _, item := range candidates {
		count, err := s.applyToItem(ctx, item, report)
		if err != nil {
			return 0, err
		}
		if count == 0 {
			continue
		}

		if s.metrics != nil {
			s.metrics.ProviderReports.WithLabelValues(report.Status.String()).Inc()
		}
		audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
			Action:    audit.ActionItemStatusUpdated,
			TicketID:  item.TicketID,
			AccountID: report.ProviderID,
			Value:     report.Value,
			Genre:     item.Genre.String(),
			Detail:    map[string]string{"status": report.Status.String()},
		})
		return count, nil
	}

	s.recordConflict()
	return 0, nil
}

// applyToItem writes the report to one candidate item, scoped to its
// parent ticket, under that ticket's lock. Returns 0 when the ticket is
// gone, not workable, or the item lost availability in the meantime.
func (s *Service) applyToItem(ctx context.Context, item *models.TicketItem, report Report) (int, error) {
	count := 0
	err := s.locker.WithLock(ctx, ports.TicketKey(item.TicketID), func(ctx context.Context) error {
		ticket, err := s.tickets.Find(ctx, item.TicketID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Ticket removed between lookup and lock.
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket")
		}
		if !ticket.IsWorkable() {
			return nil
		}

		count, err = s.items.UpdateStatus(ctx, ports.ItemUpdate{
			TicketID:   item.TicketID,
			ProviderID: report.ProviderID,
			Value:      report.Value,
			Status:     report.Status,
			Reason:     report.Reason,
			Note:       report.Note,
			Timestamp:  report.Timestamp,
			UpdatedAt:  requestcontext.Now(ctx),
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update item status")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Service) recordConflict() {
	if s.metrics != nil {
		s.metrics.GuardConflicts.Inc()
	}
}
