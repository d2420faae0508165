// Package audit defines the event model the engine emits for the
// external audit trail. Storage and retention of the trail belong to a
// separate system; the engine only publishes.
package audit

import (
	"context"
	"log/slog"
	"time"

	"interdict/pkg/domain"
	"interdict/pkg/requestcontext"
)

// Action names a domain occurrence worth auditing.
type Action string

const (
	ActionTicketCreated     Action = "ticket_created"
	ActionTicketAdvanced    Action = "ticket_advanced"
	ActionTicketRemoved     Action = "ticket_removed"
	ActionItemAdmitted      Action = "item_admitted"
	ActionItemStatusUpdated Action = "item_status_updated"
	ActionItemFlagChanged   Action = "item_flag_changed"
	ActionErrorReported     Action = "error_reported"
	ActionWhitelistAdded    Action = "whitelist_added"
	ActionWhitelistRemoved  Action = "whitelist_removed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so publishers can fan out.
type Event struct {
	Action    Action            `json:"action"`
	Timestamp time.Time         `json:"timestamp"`
	TicketID  domain.TicketID   `json:"ticket_id,omitempty"`
	AccountID domain.AccountID  `json:"account_id,omitempty"`
	Value     string            `json:"value,omitempty"`
	Genre     string            `json:"genre,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Publisher emits audit events. Emission is best-effort for the engine:
// a failed emit is logged by the caller, never allowed to fail the
// business operation, since the authoritative record is the store.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) error { return nil }

// Log is the shared helper services use to record an audit event: it
// writes the event to the structured logger and forwards it to the
// publisher. A failed emit is logged and swallowed.
func Log(ctx context.Context, logger *slog.Logger, publisher Publisher, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if logger != nil {
		attrs := []any{"event", string(event.Action), "log_type", "audit"}
		if !event.TicketID.IsEmpty() {
			attrs = append(attrs, "ticket_id", event.TicketID)
		}
		if !event.AccountID.IsEmpty() {
			attrs = append(attrs, "account_id", event.AccountID)
		}
		if event.Value != "" {
			attrs = append(attrs, "value", event.Value)
		}
		if event.Genre != "" {
			attrs = append(attrs, "genre", event.Genre)
		}
		if event.RequestID != "" {
			attrs = append(attrs, "request_id", event.RequestID)
		}
		logger.InfoContext(ctx, string(event.Action), attrs...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event.Action), "error", err)
	}
}
