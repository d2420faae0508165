// Package ports defines the persistence and collaborator interfaces the
// ticket engine consumes. Interfaces live here when more than one
// service depends on them; implementations sit under store/ and in the
// platform packages.
package ports

import (
	"context"
	"time"

	"interdict/internal/ticket/models"
	"interdict/pkg/domain"
)

// Locker scopes a body of work to a key so that check-then-write
// sequences on the same key cannot interleave. All writers must share
// the same locker instance (or, for the SQL implementation, the same
// database). The context passed to fn may carry a transaction; stores
// must execute through it.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// AdmissionKey is the lock key serializing classification and insert
// for one (genre, value) pair.
func AdmissionKey(genre models.Genre, value string) string {
	return "admission:" + genre.String() + ":" + value
}

// TicketKey is the lock key serializing status transitions and guarded
// item mutation for one ticket.
func TicketKey(ticketID domain.TicketID) string {
	return "ticket:" + ticketID.String()
}

// TicketStore persists ticket documents keyed by ticket_id.
type TicketStore interface {
	// Insert adds a new ticket. Returns sentinel.ErrConflict when the
	// identifier is already taken.
	Insert(ctx context.Context, ticket *models.Ticket) error

	// Find returns the ticket or sentinel.ErrNotFound.
	Find(ctx context.Context, ticketID domain.TicketID) (*models.Ticket, error)

	// FindByDDA returns the ticket referencing the DDA instance, or
	// sentinel.ErrNotFound.
	FindByDDA(ctx context.Context, ddaID domain.DDAID) (*models.Ticket, error)

	// List returns all tickets, most recently created first.
	List(ctx context.Context) ([]*models.Ticket, error)

	// ListByCreator returns the reporter's tickets, most recent first.
	ListByCreator(ctx context.Context, creatorID domain.AccountID) ([]*models.Ticket, error)

	// ListAssigned returns tickets carrying the provider in their
	// assignment set, most recent first. Status filtering is the
	// projector's concern.
	ListAssigned(ctx context.Context, providerID domain.AccountID) ([]*models.Ticket, error)

	// UpdateStatus persists a new lifecycle status. Returns the number
	// of documents updated (0 when the ticket does not exist).
	UpdateStatus(ctx context.Context, ticketID domain.TicketID, status models.TicketStatus, updatedAt time.Time) (int, error)

	// AppendTasks appends scheduled task references with set semantics.
	AppendTasks(ctx context.Context, ticketID domain.TicketID, taskIDs []string, updatedAt time.Time) (int, error)

	// Delete removes the ticket document. Item cascade is the service's
	// concern.
	Delete(ctx context.Context, ticketID domain.TicketID) (int, error)

	// Count returns the total number of tickets.
	Count(ctx context.Context) (int, error)
}

// ItemUpdate carries a provider's processing-status report for the
// guarded update path. TicketID pins the update to the item whose
// parent ticket the guard checked.
type ItemUpdate struct {
	TicketID   domain.TicketID
	ProviderID domain.AccountID
	Value      string
	Status     models.ItemStatus
	Reason     string
	Note       string
	Timestamp  *time.Time
	UpdatedAt  time.Time
}

// ItemStore persists ticket item documents keyed by ticket_item_id.
type ItemStore interface {
	// Insert adds a new item. Returns sentinel.ErrConflict when the
	// identifier is already taken.
	Insert(ctx context.Context, item *models.TicketItem) error

	// Find returns the item carrying value under the ticket, or
	// sentinel.ErrNotFound.
	Find(ctx context.Context, ticketID domain.TicketID, value string) (*models.TicketItem, error)

	// ListByTicket returns every item owned by the ticket.
	ListByTicket(ctx context.Context, ticketID domain.TicketID) ([]*models.TicketItem, error)

	// ListAvailableByTicket returns the ticket's available items.
	ListAvailableByTicket(ctx context.Context, ticketID domain.TicketID) ([]*models.TicketItem, error)

	// ListAvailableByProvider returns the provider's available items
	// carrying value, oldest admission first. The dedup invariant keeps
	// this to at most one item in steady state, but deactivation and
	// reactivation cycles can leave available siblings in distinct
	// tickets; callers decide which one a mutation may touch.
	ListAvailableByProvider(ctx context.Context, providerID domain.AccountID, value string) ([]*models.TicketItem, error)

	// ExistsAvailable reports whether any available item with the
	// (genre, value) pair exists anywhere in the system. This is the
	// dedup index consulted at admission time.
	ExistsAvailable(ctx context.Context, genre models.Genre, value string) (bool, error)

	// DistinctActiveValues returns the distinct active values of a
	// genre across all tickets.
	DistinctActiveValues(ctx context.Context, genre models.Genre) ([]string, error)

	// UpdateStatus applies a provider report to the available item
	// owned by the provider with the given value under the given
	// ticket. Returns the number of documents updated; 0 is the
	// conflict outcome, not an error.
	UpdateStatus(ctx context.Context, update ItemUpdate) (int, error)

	// SetErrorFlag toggles is_error on the item addressed by
	// (ticket_id, value). No re-classification is triggered.
	SetErrorFlag(ctx context.Context, ticketID domain.TicketID, value string, flag bool, updatedAt time.Time) (int, error)

	// SetActiveFlag toggles is_active on every item carrying value.
	// No re-classification is triggered.
	SetActiveFlag(ctx context.Context, value string, flag bool, updatedAt time.Time) (int, error)

	// DeleteByTicket removes all items owned by the ticket.
	DeleteByTicket(ctx context.Context, ticketID domain.TicketID) (int, error)
}

// WhitelistStore persists whitelist entries keyed by value.
type WhitelistStore interface {
	// Insert adds an entry. Returns sentinel.ErrConflict when the value
	// is already whitelisted.
	Insert(ctx context.Context, entry *models.WhitelistEntry) error

	// ExistsActive reports whether an active entry matches the
	// (genre, value) pair. Checked fresh on every admission.
	ExistsActive(ctx context.Context, genre models.Genre, value string) (bool, error)

	// Exists reports whether any entry (active or not) carries value.
	Exists(ctx context.Context, value string) (bool, error)

	// List returns all entries sorted by value.
	List(ctx context.Context) ([]*models.WhitelistEntry, error)

	// ListByCreator returns the creator's entries sorted by value.
	ListByCreator(ctx context.Context, creatorID domain.AccountID) ([]*models.WhitelistEntry, error)

	// SetActiveFlag toggles is_active on the entry carrying value.
	SetActiveFlag(ctx context.Context, value string, flag bool, updatedAt time.Time) (int, error)

	// Delete removes the creator's entry carrying value.
	Delete(ctx context.Context, value string, creatorID domain.AccountID) (int, error)
}

// TicketErrorStore persists error reports keyed by ticket_error_id.
type TicketErrorStore interface {
	Insert(ctx context.Context, report *models.TicketError) error
	Find(ctx context.Context, reportID domain.TicketErrorID) (*models.TicketError, error)
	ListByTicket(ctx context.Context, ticketID domain.TicketID) ([]*models.TicketError, error)
	DeleteByTicket(ctx context.Context, ticketID domain.TicketID) (int, error)
}

// AccountDirectory resolves account identifiers to display names. Used
// only to enrich read projections, never to gate logic.
type AccountDirectory interface {
	ResolveName(ctx context.Context, accountID domain.AccountID) (string, error)
}
