// Package projection builds the provider-facing read views. Providers
// only ever see the available items of actionable tickets they are
// assigned to, as per-genre value sets; everything else projects to an
// empty set, never to an error.
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"interdict/internal/ticket/models"
	"interdict/internal/ticket/ports"
	"interdict/pkg/domain"
	dErrors "interdict/pkg/domain-errors"
	"interdict/pkg/platform/sentinel"
)

type Service struct {
	tickets   ports.TicketStore
	items     ports.ItemStore
	whitelist ports.WhitelistStore
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(tickets ports.TicketStore, items ports.ItemStore, whitelist ports.WhitelistStore, opts ...Option) (*Service, error) {
	if tickets == nil {
		return nil, fmt.Errorf("ticket store is required")
	}
	if items == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if whitelist == nil {
		return nil, fmt.Errorf("whitelist store is required")
	}

	svc := &Service{
		tickets:   tickets,
		items:     items,
		whitelist: whitelist,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// VisibleTicketItems projects one ticket for one provider. A ticket
// the provider is not assigned to, one still in its created hold, or
// one that does not exist all project to the same empty set, so a
// provider cannot probe which ticket identifiers are taken.
func (s *Service) VisibleTicketItems(ctx context.Context, ticketID domain.TicketID, providerID domain.AccountID) (models.GenreItemSet, error) {
	if ticketID.IsEmpty() {
		return models.NewGenreItemSet(), dErrors.New(dErrors.CodeBadRequest, "ticket_id is required")
	}
	if providerID.IsEmpty() {
		return models.NewGenreItemSet(), dErrors.New(dErrors.CodeBadRequest, "provider_id is required")
	}

	ticket, err := s.tickets.Find(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.NewGenreItemSet(), nil
		}
		return models.NewGenreItemSet(), dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket")
	}

	if !ticket.IsWorkable() || !ticket.IsAssignedTo(providerID) {
		return models.NewGenreItemSet(), nil
	}
	return s.collectForProvider(ctx, ticketID, providerID)
}

// VisibleItems projects the provider's full workload: the union of its
// visible items across every actionable ticket it is assigned to. An
// unknown or unassigned provider gets the empty set.
func (s *Service) VisibleItems(ctx context.Context, providerID domain.AccountID) (models.GenreItemSet, error) {
	if providerID.IsEmpty() {
		return models.NewGenreItemSet(), dErrors.New(dErrors.CodeBadRequest, "provider_id is required")
	}

	tickets, err := s.tickets.ListAssigned(ctx, providerID)
	if err != nil {
		return models.NewGenreItemSet(), dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assigned tickets")
	}

	set := models.NewGenreItemSet()
	for _, ticket := range tickets {
		if !ticket.IsWorkable() {
			continue
		}
		ticketSet, err := s.collectForProvider(ctx, ticket.ID, providerID)
		if err != nil {
			return models.NewGenreItemSet(), err
		}
		set = set.Merge(ticketSet)
	}
	return set, nil
}

// ExistsDuplicate reports whether admitting value now would classify it
// as a duplicate. Advisory only: the admission path re-checks under its
// own lock.
func (s *Service) ExistsDuplicate(ctx context.Context, genre models.Genre, value string) (bool, error) {
	if value == "" {
		return false, dErrors.New(dErrors.CodeInvalidInput, "value cannot be empty")
	}
	if !genre.IsValid() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "invalid genre")
	}

	exists, err := s.items.ExistsAvailable(ctx, genre, value)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consult dedup index")
	}
	return exists, nil
}

// ExistsInWhitelist reports whether any whitelist entry carries value,
// regardless of genre or active flag. Advisory only, same caveat as
// ExistsDuplicate; the classifier consults the active per-genre check
// itself.
func (s *Service) ExistsInWhitelist(ctx context.Context, value string) (bool, error) {
	if value == "" {
		return false, dErrors.New(dErrors.CodeInvalidInput, "value cannot be empty")
	}

	exists, err := s.whitelist.Exists(ctx, value)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consult whitelist")
	}
	return exists, nil
}

// ActiveValues returns the distinct active values of a genre across the
// whole system, for the operator-facing export.
func (s *Service) ActiveValues(ctx context.Context, genre models.Genre) ([]string, error) {
	if !genre.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid genre")
	}

	values, err := s.items.DistinctActiveValues(ctx, genre)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active values")
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func (s *Service) collectForProvider(ctx context.Context, ticketID domain.TicketID, providerID domain.AccountID) (models.GenreItemSet, error) {
	available, err := s.items.ListAvailableByTicket(ctx, ticketID)
	if err != nil {
		return models.NewGenreItemSet(), dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ticket items")
	}

	owned := available[:0:0]
	for _, item := range available {
		if item.ProviderID == providerID {
			owned = append(owned, item)
		}
	}
	return models.Collect(owned), nil
}
