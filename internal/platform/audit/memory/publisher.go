// Package memory provides an in-process audit publisher for tests.
package memory

import (
	"context"
	"sync"

	"interdict/internal/platform/audit"
)

// Publisher records emitted events in memory.
type Publisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func New() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Emit(_ context.Context, event audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (p *Publisher) Events() []audit.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]audit.Event{}, p.events...)
}

// ByAction filters recorded events by action.
func (p *Publisher) ByAction(action audit.Action) []audit.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []audit.Event
	for _, e := range p.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
