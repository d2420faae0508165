// Package directory resolves account identifiers to display names for
// read projections. Account management itself lives in an external
// system; the engine only looks names up.
package directory

import (
	"context"
	"sync"

	"interdict/pkg/domain"
	"interdict/pkg/platform/sentinel"
)

// StaticDirectory serves names from a fixed map. Used in tests and in
// deployments where the account roster is provisioned at startup.
type StaticDirectory struct {
	mu    sync.RWMutex
	names map[domain.AccountID]string
}

func NewStatic(names map[domain.AccountID]string) *StaticDirectory {
	copied := make(map[domain.AccountID]string, len(names))
	for id, name := range names {
		copied[id] = name
	}
	return &StaticDirectory{names: copied}
}

// ResolveName returns the account's display name or
// sentinel.ErrNotFound.
func (d *StaticDirectory) ResolveName(_ context.Context, accountID domain.AccountID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.names[accountID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return name, nil
}

// Register adds or replaces an account's name.
func (d *StaticDirectory) Register(accountID domain.AccountID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[accountID] = name
}
