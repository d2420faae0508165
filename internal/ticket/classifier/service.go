// Package classifier owns item admission. Every value entering a ticket
// is classified exactly once, at admission time, against the live
// whitelist and the dedup index; the resulting flags are frozen into the
// item documents. Later whitelist or dedup changes never rewrite them.
package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"interdict/internal/platform/audit"
	"interdict/internal/platform/metrics"
	"interdict/internal/ticket/models"
	"interdict/internal/ticket/ports"
	"interdict/pkg/domain"
	dErrors "interdict/pkg/domain-errors"
	"interdict/pkg/requestcontext"
)

type Service struct {
	items          ports.ItemStore
	whitelist      ports.WhitelistStore
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

func New(items ports.ItemStore, whitelist ports.WhitelistStore, locker ports.Locker, opts ...Option) (*Service, error) {
	if items == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if whitelist == nil {
		return nil, fmt.Errorf("whitelist store is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}

	svc := &Service{
		items:     items,
		whitelist: whitelist,
		locker:    locker,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Admit classifies value for the ticket and creates one item per
// assigned provider, every item carrying the same flags. The whole
// check-then-insert sequence holds the (genre, value) admission lock, so
// two tickets racing on the same value serialize: the first wins, the
// second classifies as duplicate.
//
// Precedence: an active whitelist hit wins and suppresses the duplicate
// check entirely, so a whitelisted admission never carries is_duplicate.
func (s *Service) Admit(ctx context.Context, ticket *models.Ticket, genre models.Genre, value string) ([]*models.TicketItem, error) {
	if ticket == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "ticket is required")
	}
	if value == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "item value cannot be empty")
	}
	if !genre.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid item genre")
	}

	var admitted []*models.TicketItem
	outcome := metrics.OutcomeClean

	err := s.locker.WithLock(ctx, ports.AdmissionKey(genre, value), func(ctx context.Context) error {
		whitelisted, err := s.whitelist.ExistsActive(ctx, genre, value)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consult whitelist")
		}

		duplicate := false
		if whitelisted {
			outcome = metrics.OutcomeWhitelisted
		} else {
			duplicate, err = s.items.ExistsAvailable(ctx, genre, value)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consult dedup index")
			}
			if duplicate {
				outcome = metrics.OutcomeDuplicate
			}
		}

		now := requestcontext.Now(ctx)
		for _, providerID := range ticket.AssignedTo {
			item, err := models.NewTicketItem(ticket.ID, value, genre, providerID, now)
			if err != nil {
				return err
			}
			item.IsWhitelisted = whitelisted
			item.IsDuplicate = duplicate
			if err := s.items.Insert(ctx, item); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert ticket item")
			}
			admitted = append(admitted, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ItemsAdmitted.WithLabelValues(genre.String(), outcome).Inc()
	}
	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionItemAdmitted,
		TicketID:  ticket.ID,
		AccountID: requestcontext.AccountID(ctx),
		Value:     value,
		Genre:     genre.String(),
		Detail:    map[string]string{"outcome": outcome},
	})

	return admitted, nil
}

// SetError toggles is_error on the ticket's item carrying value. A flag
// change only; the item keeps its admission-time classification, and no
// other item is re-evaluated. Returns the number of items touched.
func (s *Service) SetError(ctx context.Context, ticketID domain.TicketID, value string, flag bool) (int, error) {
	if ticketID.IsEmpty() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "ticket_id is required")
	}
	if value == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "item value cannot be empty")
	}

	count, err := s.items.SetErrorFlag(ctx, ticketID, value, flag, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to set error flag")
	}

	if count > 0 {
		audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
			Action:    audit.ActionItemFlagChanged,
			TicketID:  ticketID,
			AccountID: requestcontext.AccountID(ctx),
			Value:     value,
			Detail:    map[string]string{"flag": "is_error", "enabled": fmt.Sprintf("%t", flag)},
		})
	}
	return count, nil
}

// SetActive toggles is_active on every item carrying value, across all
// tickets. The flag change does not re-run classification: items that
// were admitted as duplicates of a now-inactive value stay duplicates.
// Returns the number of items touched.
func (s *Service) SetActive(ctx context.Context, value string, flag bool) (int, error) {
	if value == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "item value cannot be empty")
	}

	count, err := s.items.SetActiveFlag(ctx, value, flag, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to set active flag")
	}

	if count > 0 {
		audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
			Action:    audit.ActionItemFlagChanged,
			AccountID: requestcontext.AccountID(ctx),
			Value:     value,
			Detail:    map[string]string{"flag": "is_active", "enabled": fmt.Sprintf("%t", flag)},
		})
	}
	return count, nil
}
