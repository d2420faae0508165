// Package domain holds the typed business identifiers shared across the
// engine. Documents are keyed by these identifiers, not by storage
// surrogate keys, so they stay stable across a storage migration.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "interdict/pkg/domain-errors"
)

// Typed identifiers. Distinct types keep a provider account from being
// passed where a ticket identifier is expected.
type (
	TicketID      string
	TicketItemID  string
	TicketErrorID string
	AccountID     string
	DDAID         string
)

// NewTicketID generates a fresh ticket identifier.
func NewTicketID() TicketID {
	return TicketID(uuid.NewString())
}

// NewTicketItemID generates a fresh ticket item identifier.
func NewTicketItemID() TicketItemID {
	return TicketItemID(uuid.NewString())
}

// NewTicketErrorID generates a fresh error report identifier.
func NewTicketErrorID() TicketErrorID {
	return TicketErrorID(uuid.NewString())
}

// ParseTicketID validates external input as a ticket identifier.
func ParseTicketID(s string) (TicketID, error) {
	if err := validateID(s, "ticket_id"); err != nil {
		return "", err
	}
	return TicketID(s), nil
}

// ParseAccountID validates external input as an account identifier.
func ParseAccountID(s string) (AccountID, error) {
	if err := validateID(s, "account_id"); err != nil {
		return "", err
	}
	return AccountID(s), nil
}

func validateID(s, field string) error {
	if strings.TrimSpace(s) == "" {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	if _, err := uuid.Parse(s); err != nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid identifier", field)
	}
	return nil
}

func (id TicketID) String() string      { return string(id) }
func (id TicketItemID) String() string  { return string(id) }
func (id TicketErrorID) String() string { return string(id) }
func (id AccountID) String() string     { return string(id) }
func (id DDAID) String() string         { return string(id) }

func (id TicketID) IsEmpty() bool  { return id == "" }
func (id AccountID) IsEmpty() bool { return id == "" }
func (id DDAID) IsEmpty() bool     { return id == "" }
