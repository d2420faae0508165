// Package engine assembles the ticket engine from its parts. Hosts embed
// an Engine and call the services directly; the engine itself exposes no
// transport.
package engine

import (
	"log/slog"

	"interdict/internal/platform/audit"
	"interdict/internal/platform/metrics"
	"interdict/internal/ticket/classifier"
	"interdict/internal/ticket/guard"
	"interdict/internal/ticket/lifecycle"
	"interdict/internal/ticket/ports"
	"interdict/internal/ticket/projection"
	ticketservice "interdict/internal/ticket/service"
	whitelistservice "interdict/internal/whitelist"
)

// Stores groups the persistence ports the engine runs on. All four plus
// the locker must come from the same backend family: mixing the
// in-memory locker with SQL stores (or vice versa) silently drops the
// atomicity guarantees.
type Stores struct {
	Tickets      ports.TicketStore
	Items        ports.ItemStore
	Whitelist    ports.WhitelistStore
	TicketErrors ports.TicketErrorStore
	Locker       ports.Locker
}

// Engine bundles the assembled services.
type Engine struct {
	Lifecycle  *lifecycle.Service
	Classifier *classifier.Service
	Guard      *guard.Service
	Projection *projection.Service
	Tickets    *ticketservice.Service
	Whitelist  *whitelistservice.Service
}

// Options carries the optional collaborators shared across services.
type Options struct {
	Logger         *slog.Logger
	AuditPublisher audit.Publisher
	Metrics        *metrics.Metrics
	Directory      ports.AccountDirectory
}

// New wires every service against the given stores.
func New(stores Stores, opts Options) (*Engine, error) {
	lifecycleSvc, err := lifecycle.New(stores.Tickets, stores.Locker,
		lifecycle.WithLogger(opts.Logger),
		lifecycle.WithAuditPublisher(opts.AuditPublisher),
		lifecycle.WithMetrics(opts.Metrics),
	)
	if err != nil {
		return nil, err
	}

	classifierSvc, err := classifier.New(stores.Items, stores.Whitelist, stores.Locker,
		classifier.WithLogger(opts.Logger),
		classifier.WithAuditPublisher(opts.AuditPublisher),
		classifier.WithMetrics(opts.Metrics),
	)
	if err != nil {
		return nil, err
	}

	guardSvc, err := guard.New(stores.Tickets, stores.Items, stores.Locker,
		guard.WithLogger(opts.Logger),
		guard.WithAuditPublisher(opts.AuditPublisher),
		guard.WithMetrics(opts.Metrics),
	)
	if err != nil {
		return nil, err
	}

	projectionSvc, err := projection.New(stores.Tickets, stores.Items, stores.Whitelist,
		projection.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}

	ticketSvc, err := ticketservice.New(stores.Tickets, stores.Items, stores.TicketErrors, classifierSvc, stores.Locker,
		ticketservice.WithLogger(opts.Logger),
		ticketservice.WithAuditPublisher(opts.AuditPublisher),
		ticketservice.WithMetrics(opts.Metrics),
		ticketservice.WithDirectory(opts.Directory),
	)
	if err != nil {
		return nil, err
	}

	whitelistSvc, err := whitelistservice.New(stores.Whitelist,
		whitelistservice.WithLogger(opts.Logger),
		whitelistservice.WithAuditPublisher(opts.AuditPublisher),
		whitelistservice.WithDirectory(opts.Directory),
	)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Lifecycle:  lifecycleSvc,
		Classifier: classifierSvc,
		Guard:      guardSvc,
		Projection: projectionSvc,
		Tickets:    ticketSvc,
		Whitelist:  whitelistSvc,
	}, nil
}
