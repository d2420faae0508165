// Package whitelist manages the protected-value registry. Entries have
// their own lifecycle, independent of tickets: the classifier consults
// them at admission time, and changes here never rewrite items already
// admitted.
package whitelist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"interdict/internal/platform/audit"
	"interdict/internal/ticket/models"
	"interdict/internal/ticket/ports"
	"interdict/pkg/domain"
	dErrors "interdict/pkg/domain-errors"
	"interdict/pkg/platform/sentinel"
	"interdict/pkg/requestcontext"
)

// EntryView is a whitelist entry with its creator name resolved.
type EntryView struct {
	Entry       *models.WhitelistEntry `json:"entry"`
	CreatorName string                 `json:"creator_name,omitempty"`
}

type Service struct {
	entries        ports.WhitelistStore
	directory      ports.AccountDirectory
	auditPublisher audit.Publisher
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

func WithDirectory(directory ports.AccountDirectory) Option {
	return func(s *Service) {
		s.directory = directory
	}
}

func New(entries ports.WhitelistStore, opts ...Option) (*Service, error) {
	if entries == nil {
		return nil, fmt.Errorf("whitelist store is required")
	}

	svc := &Service{entries: entries}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Add registers value as protected for the genre. One entry per value;
// a second registration is a conflict regardless of genre.
func (s *Service) Add(ctx context.Context, genre models.Genre, value string, createdBy domain.AccountID) (*models.WhitelistEntry, error) {
	entry, err := models.NewWhitelistEntry(genre, value, createdBy, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.entries.Insert(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "value is already whitelisted")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert whitelist entry")
	}

	audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionWhitelistAdded,
		AccountID: createdBy,
		Value:     value,
		Genre:     genre.String(),
	})

	return entry, nil
}

// List returns every entry, sorted by value, with creator names
// resolved.
func (s *Service) List(ctx context.Context) ([]*EntryView, error) {
	entries, err := s.entries.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list whitelist entries")
	}
	return s.views(ctx, entries), nil
}

// ListByCreator returns the creator's entries, sorted by value.
func (s *Service) ListByCreator(ctx context.Context, creatorID domain.AccountID) ([]*EntryView, error) {
	if creatorID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "creator_id is required")
	}

	entries, err := s.entries.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list whitelist entries")
	}
	return s.views(ctx, entries), nil
}

// SetActive toggles the entry's is_active flag. Only active entries are
// consulted at admission; flipping one never reclassifies existing
// items. Returns the number of entries touched (0 when value is
// unknown).
func (s *Service) SetActive(ctx context.Context, value string, flag bool) (int, error) {
	if value == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "whitelist value cannot be empty")
	}

	count, err := s.entries.SetActiveFlag(ctx, value, flag, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to set whitelist active flag")
	}
	return count, nil
}

// Remove deletes the creator's entry carrying value. Returns the number
// of entries removed; 0 means the value is unknown or owned by another
// creator.
func (s *Service) Remove(ctx context.Context, value string, creatorID domain.AccountID) (int, error) {
	if value == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "whitelist value cannot be empty")
	}
	if creatorID.IsEmpty() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "creator_id is required")
	}

	count, err := s.entries.Delete(ctx, value, creatorID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete whitelist entry")
	}

	if count > 0 {
		audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
			Action:    audit.ActionWhitelistRemoved,
			AccountID: creatorID,
			Value:     value,
		})
	}
	return count, nil
}

func (s *Service) views(ctx context.Context, entries []*models.WhitelistEntry) []*EntryView {
	out := make([]*EntryView, len(entries))
	for i, entry := range entries {
		view := &EntryView{Entry: entry}
		if s.directory != nil {
			name, err := s.directory.ResolveName(ctx, entry.CreatedBy)
			if err != nil {
				if s.logger != nil {
					s.logger.WarnContext(ctx, "failed to resolve account name", "account_id", entry.CreatedBy, "error", err)
				}
			} else {
				view.CreatorName = name
			}
		}
		out[i] = view
	}
	return out
}
