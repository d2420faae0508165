// Package scheduler drives time-based lifecycle transitions. The engine
// exposes no timers of its own; this cron-driven sweep calls the
// lifecycle service and tolerates losing races against concurrent
// transitions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"interdict/internal/platform/metrics"
	"interdict/internal/ticket/lifecycle"
	"interdict/internal/ticket/models"
	"interdict/internal/ticket/ports"
	dErrors "interdict/pkg/domain-errors"
	"interdict/pkg/requestcontext"
)

// sweepConcurrency bounds parallel Advance calls per sweep.
const sweepConcurrency = 8

type Scheduler struct {
	tickets   ports.TicketStore
	lifecycle *lifecycle.Service
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cron      *cron.Cron
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func New(tickets ports.TicketStore, lc *lifecycle.Service, opts ...Option) (*Scheduler, error) {
	if tickets == nil {
		return nil, fmt.Errorf("ticket store is required")
	}
	if lc == nil {
		return nil, fmt.Errorf("lifecycle service is required")
	}

	s := &Scheduler{
		tickets:   tickets,
		lifecycle: lc,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start schedules the sweep on the given cron expression and begins
// running it in the background.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := s.Sweep(ctx, time.Now()); err != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the cron runner and waits for a running sweep to return.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep evaluates every ticket against one instant and advances the due
// ones: created tickets past their revoke hold open, open tickets past
// the autoclose window close. Both deadlines are anchored to creation
// time so a missed sweep does not stretch them. Lost races surface as
// invalid transitions and are skipped, not failed.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) error {
	ctx = requestcontext.WithTime(ctx, now)

	tickets, err := s.tickets.List(ctx)
	if err != nil {
		s.recordSweep(true)
		return fmt.Errorf("list tickets: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	for _, ticket := range tickets {
		target, due := s.due(ticket, now)
		if !due {
			continue
		}
		g.Go(func() error {
			_, err := s.lifecycle.Advance(ctx, ticket.ID, target)
			if err == nil {
				return nil
			}
			if dErrors.HasCode(err, dErrors.CodeInvalidTransition) || dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil
			}
			return fmt.Errorf("advance ticket %s: %w", ticket.ID, err)
		})
	}

	err = g.Wait()
	s.recordSweep(err != nil)
	return err
}

func (s *Scheduler) due(ticket *models.Ticket, now time.Time) (models.TicketStatus, bool) {
	switch ticket.Status {
	case models.TicketStatusCreated:
		if !now.Before(ticket.CreatedAt.Add(ticket.Settings.RevokeTime)) {
			return models.TicketStatusOpen, true
		}
	case models.TicketStatusOpen:
		deadline := ticket.CreatedAt.Add(ticket.Settings.RevokeTime + ticket.Settings.AutocloseTime)
		if !now.Before(deadline) {
			return models.TicketStatusClosed, true
		}
	}
	return "", false
}

func (s *Scheduler) recordSweep(failed bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.SweepRuns.Inc()
	if failed {
		s.metrics.SweepFailures.Inc()
	}
}
