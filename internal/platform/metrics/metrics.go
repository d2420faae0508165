// Package metrics registers the engine's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ticket engine.
type Metrics struct {
	TicketsCreated    prometheus.Counter
	TicketTransitions *prometheus.CounterVec
	ItemsAdmitted     *prometheus.CounterVec
	GuardConflicts    prometheus.Counter
	ProviderReports   *prometheus.CounterVec
	SweepRuns         prometheus.Counter
	SweepFailures     prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default
// registry.
func New() *Metrics {
	return &Metrics{
		TicketsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interdict_tickets_created_total",
			Help: "Total number of tickets created.",
		}),
		TicketTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "interdict_ticket_transitions_total",
			Help: "Total ticket lifecycle transitions, by resulting status.",
		}, []string{"status"}),
		ItemsAdmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "interdict_items_admitted_total",
			Help: "Total items admitted, by genre and classification outcome.",
		}, []string{"genre", "outcome"}),
		GuardConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interdict_guard_conflicts_total",
			Help: "Provider reports that matched no available item on a workable ticket.",
		}),
		ProviderReports: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "interdict_provider_reports_total",
			Help: "Provider processing-status reports applied, by reported status.",
		}, []string{"status"}),
		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interdict_sweep_runs_total",
			Help: "Scheduler sweeps executed.",
		}),
		SweepFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interdict_sweep_failures_total",
			Help: "Scheduler sweeps that ended with at least one error.",
		}),
	}
}

// Classification outcomes recorded by ItemsAdmitted.
const (
	OutcomeClean       = "clean"
	OutcomeDuplicate   = "duplicate"
	OutcomeWhitelisted = "whitelisted"
)
