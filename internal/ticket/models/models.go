// Package models defines the ticket aggregate: the ticket document, its
// exclusively-owned items, whitelist entries, and error reports. All
// invariant validation lives in the constructors; stores persist these
// structs as documents keyed by their business identifier.
package models

import (
	"sort"
	"time"

	"interdict/pkg/domain"
	dErrors "interdict/pkg/domain-errors"
	pstrings "interdict/pkg/platform/strings"
)

// TicketStatus is the lifecycle state of a ticket. Status only moves
// forward: created -> open -> closed. Closed is terminal.
type TicketStatus string

const (
	TicketStatusCreated TicketStatus = "created"
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusClosed  TicketStatus = "closed"
)

// IsValid checks if the status is one of the supported enum values.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusCreated, TicketStatusOpen, TicketStatusClosed:
		return true
	}
	return false
}

// Successor returns the single legal next state, or false for closed.
func (s TicketStatus) Successor() (TicketStatus, bool) {
	switch s {
	case TicketStatusCreated:
		return TicketStatusOpen, true
	case TicketStatusOpen:
		return TicketStatusClosed, true
	}
	return "", false
}

// CanAdvanceTo reports whether target is the state machine's successor
// of s. Any other requested edge is an invalid transition.
func (s TicketStatus) CanAdvanceTo(target TicketStatus) bool {
	next, ok := s.Successor()
	return ok && next == target
}

// IsTerminal reports whether no further transitions are possible.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed
}

func (s TicketStatus) String() string {
	return string(s)
}

// Genre is the type discriminator for a blocked value.
type Genre string

const (
	GenreFQDN Genre = "fqdn"
	GenreIPv4 Genre = "ipv4"
	GenreIPv6 Genre = "ipv6"
)

// Genres lists the supported genres in projection order.
var Genres = []Genre{GenreFQDN, GenreIPv4, GenreIPv6}

// ParseGenre constructs a Genre from external input.
func ParseGenre(s string) (Genre, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "genre cannot be empty")
	}
	g := Genre(s)
	if !g.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid genre: must be 'fqdn', 'ipv4' or 'ipv6'")
	}
	return g, nil
}

// IsValid checks if the genre is one of the supported enum values.
func (g Genre) IsValid() bool {
	return g == GenreFQDN || g == GenreIPv4 || g == GenreIPv6
}

func (g Genre) String() string {
	return string(g)
}

// ItemStatus is the provider-reported processing status of an item.
type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusAccepted ItemStatus = "accepted"
	ItemStatusRejected ItemStatus = "rejected"
)

// ParseItemStatus constructs an ItemStatus from provider input.
func ParseItemStatus(s string) (ItemStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "item status cannot be empty")
	}
	st := ItemStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid item status: must be 'pending', 'accepted' or 'rejected'")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s ItemStatus) IsValid() bool {
	return s == ItemStatusPending || s == ItemStatusAccepted || s == ItemStatusRejected
}

func (s ItemStatus) String() string {
	return string(s)
}

// TicketSettings holds the durations driving the external scheduler.
type TicketSettings struct {
	RevokeTime      time.Duration `json:"revoke_time"`
	AutocloseTime   time.Duration `json:"autoclose_time"`
	ReportErrorTime time.Duration `json:"report_error_time"`
}

// DefaultTicketSettings are applied when the reporter supplies none.
func DefaultTicketSettings() TicketSettings {
	return TicketSettings{
		RevokeTime:      30 * time.Minute,
		AutocloseTime:   24 * time.Hour,
		ReportErrorTime: 72 * time.Hour,
	}
}

// Ticket is a reported case. The fqdn/ipv4/ipv6 candidate lists are
// informational; the authoritative values live in TicketItem documents.
type Ticket struct {
	ID          domain.TicketID    `json:"ticket_id"`
	DDAID       domain.DDAID       `json:"dda_id,omitempty"`
	Description string             `json:"description"`
	FQDN        []string           `json:"fqdn"`
	IPv4        []string           `json:"ipv4"`
	IPv6        []string           `json:"ipv6"`
	AssignedTo  []domain.AccountID `json:"assigned_to"`
	Status      TicketStatus       `json:"status"`
	Settings    TicketSettings     `json:"settings"`
	Tasks       []string           `json:"tasks"`
	CreatedBy   domain.AccountID   `json:"created_by"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewTicket creates a ticket in the initial state with domain invariant
// validation. Candidate lists and the assigned provider set are
// collapsed to set semantics; fqdn values compare case-insensitively.
func NewTicket(
	ddaID domain.DDAID,
	description string,
	fqdn, ipv4, ipv6 []string,
	assignedTo []domain.AccountID,
	settings TicketSettings,
	createdBy domain.AccountID,
	now time.Time,
) (*Ticket, error) {
	if createdBy.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ticket requires a creator account")
	}
	providers := collapseAccounts(assignedTo)
	if len(providers) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ticket requires at least one assigned provider")
	}
	if settings == (TicketSettings{}) {
		settings = DefaultTicketSettings()
	}
	return &Ticket{
		ID:          domain.NewTicketID(),
		DDAID:       ddaID,
		Description: description,
		FQDN:        pstrings.DedupeAndTrimLower(fqdn),
		IPv4:        pstrings.DedupeAndTrim(ipv4),
		IPv6:        pstrings.DedupeAndTrim(ipv6),
		AssignedTo:  providers,
		Status:      TicketStatusCreated,
		Settings:    settings,
		Tasks:       []string{},
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsWorkable reports whether the ticket has left its initial hold. Only
// workable tickets accept provider reports and expose items to the
// assigned providers.
func (t *Ticket) IsWorkable() bool {
	return t.Status != TicketStatusCreated
}

// IsAssignedTo reports whether the provider is in the ticket's
// assignment set.
func (t *Ticket) IsAssignedTo(providerID domain.AccountID) bool {
	for _, assigned := range t.AssignedTo {
		if assigned == providerID {
			return true
		}
	}
	return false
}

func collapseAccounts(accounts []domain.AccountID) []domain.AccountID {
	raw := make([]string, len(accounts))
	for i, a := range accounts {
		raw[i] = a.String()
	}
	collapsed := pstrings.DedupeAndTrim(raw)
	out := make([]domain.AccountID, len(collapsed))
	for i, a := range collapsed {
		out[i] = domain.AccountID(a)
	}
	return out
}

// TicketItem is a single value under a ticket, owned exclusively by it.
// The classification flags are computed once at admission; only is_error
// and is_active may change afterwards, through their explicit paths.
type TicketItem struct {
	ID            domain.TicketItemID `json:"ticket_item_id"`
	TicketID      domain.TicketID     `json:"ticket_id"`
	Value         string              `json:"value"`
	Genre         Genre               `json:"genre"`
	ProviderID    domain.AccountID    `json:"provider_id"`
	Status        ItemStatus          `json:"status"`
	Reason        string              `json:"reason,omitempty"`
	IsDuplicate   bool                `json:"is_duplicate"`
	IsWhitelisted bool                `json:"is_whitelisted"`
	IsError       bool                `json:"is_error"`
	IsActive      bool                `json:"is_active"`
	Timestamp     *time.Time          `json:"timestamp,omitempty"`
	Note          string              `json:"note,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewTicketItem creates an item in the pending state with a clean flag
// set. The classifier fills IsDuplicate/IsWhitelisted before the item is
// persisted; they are immutable afterwards.
func NewTicketItem(
	ticketID domain.TicketID,
	value string,
	genre Genre,
	providerID domain.AccountID,
	now time.Time,
) (*TicketItem, error) {
	if ticketID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ticket item requires an owning ticket")
	}
	if value == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ticket item value cannot be empty")
	}
	if !genre.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid ticket item genre")
	}
	if providerID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ticket item requires an owning provider")
	}
	return &TicketItem{
		ID:         domain.NewTicketItemID(),
		TicketID:   ticketID,
		Value:      value,
		Genre:      genre,
		ProviderID: providerID,
		Status:     ItemStatusPending,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Available is the derived predicate gating dedup, provider visibility
// and guarded mutation: active and carrying no exclusion flag.
func (i *TicketItem) Available() bool {
	return i.IsActive && !i.IsDuplicate && !i.IsWhitelisted && !i.IsError
}

// WhitelistEntry marks a (genre, value) pair that must never be
// actioned. Independent lifecycle; consulted, never owned, by the
// classifier.
type WhitelistEntry struct {
	Genre     Genre            `json:"genre"`
	Value     string           `json:"value"`
	IsActive  bool             `json:"is_active"`
	CreatedBy domain.AccountID `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewWhitelistEntry creates an active whitelist entry.
func NewWhitelistEntry(genre Genre, value string, createdBy domain.AccountID, now time.Time) (*WhitelistEntry, error) {
	if !genre.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid whitelist genre")
	}
	if value == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "whitelist value cannot be empty")
	}
	if createdBy.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "whitelist entry requires a creator account")
	}
	return &WhitelistEntry{
		Genre:     genre,
		Value:     value,
		IsActive:  true,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TicketError is a reporter-filed side record listing erroneous values
// on a ticket. Not part of the lifecycle invariants.
type TicketError struct {
	ID        domain.TicketErrorID `json:"ticket_error_id"`
	TicketID  domain.TicketID      `json:"ticket_id"`
	FQDN      []string             `json:"fqdn"`
	IPv4      []string             `json:"ipv4"`
	IPv6      []string             `json:"ipv6"`
	CreatedBy domain.AccountID     `json:"created_by"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewTicketError creates an error report carrying at least one value.
func NewTicketError(
	ticketID domain.TicketID,
	fqdn, ipv4, ipv6 []string,
	createdBy domain.AccountID,
	now time.Time,
) (*TicketError, error) {
	if ticketID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "error report requires an owning ticket")
	}
	if createdBy.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "error report requires a creator account")
	}
	fqdn = pstrings.DedupeAndTrimLower(fqdn)
	ipv4 = pstrings.DedupeAndTrim(ipv4)
	ipv6 = pstrings.DedupeAndTrim(ipv6)
	if len(fqdn)+len(ipv4)+len(ipv6) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "error report requires at least one value")
	}
	return &TicketError{
		ID:        domain.NewTicketErrorID(),
		TicketID:  ticketID,
		FQDN:      fqdn,
		IPv4:      ipv4,
		IPv6:      ipv6,
		CreatedBy: createdBy,
		CreatedAt: now,
	}, nil
}

// Values returns the reported values grouped by genre.
func (e *TicketError) Values(genre Genre) []string {
	switch genre {
	case GenreFQDN:
		return e.FQDN
	case GenreIPv4:
		return e.IPv4
	case GenreIPv6:
		return e.IPv6
	}
	return nil
}

// GenreItemSet is the provider-facing projection of a ticket's
// actionable values: per genre, a deduplicated sorted set. Empty sets
// are non-nil so an unassigned provider's view is indistinguishable
// from a ticket with no actionable items.
type GenreItemSet struct {
	FQDN []string `json:"fqdn"`
	IPv4 []string `json:"ipv4"`
	IPv6 []string `json:"ipv6"`
}

// NewGenreItemSet returns an empty set for every genre.
func NewGenreItemSet() GenreItemSet {
	return GenreItemSet{
		FQDN: []string{},
		IPv4: []string{},
		IPv6: []string{},
	}
}

// Collect builds a GenreItemSet from items, applying set semantics per
// genre. Items are taken as given; availability filtering is the
// caller's concern.
func Collect(items []*TicketItem) GenreItemSet {
	set := NewGenreItemSet()
	seen := make(map[Genre]map[string]struct{}, len(Genres))
	for _, g := range Genres {
		seen[g] = make(map[string]struct{})
	}
	for _, item := range items {
		values, ok := seen[item.Genre]
		if !ok {
			continue
		}
		if _, dup := values[item.Value]; dup {
			continue
		}
		values[item.Value] = struct{}{}
		switch item.Genre {
		case GenreFQDN:
			set.FQDN = append(set.FQDN, item.Value)
		case GenreIPv4:
			set.IPv4 = append(set.IPv4, item.Value)
		case GenreIPv6:
			set.IPv6 = append(set.IPv6, item.Value)
		}
	}
	sort.Strings(set.FQDN)
	sort.Strings(set.IPv4)
	sort.Strings(set.IPv6)
	return set
}

// IsEmpty reports whether no genre carries any value.
func (s GenreItemSet) IsEmpty() bool {
	return len(s.FQDN) == 0 && len(s.IPv4) == 0 && len(s.IPv6) == 0
}

// Merge folds other into s, keeping set semantics per genre.
func (s GenreItemSet) Merge(other GenreItemSet) GenreItemSet {
	s.FQDN = mergeSorted(s.FQDN, other.FQDN)
	s.IPv4 = mergeSorted(s.IPv4, other.IPv4)
	s.IPv6 = mergeSorted(s.IPv6, other.IPv6)
	return s
}

func mergeSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
