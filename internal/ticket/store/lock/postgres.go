package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	txcontext "interdict/pkg/platform/tx"
)

const defaultLockTimeout = 5 * time.Second

// AdvisoryLocker scopes fn to a SQL transaction holding a
// transaction-level advisory lock on the key's hash. Every process
// pointing at the same database shares the lock space, which makes the
// check-then-insert admission sequence indivisible across instances.
//
// The transaction is carried through context; the postgres stores
// execute through it, so a failed body rolls back without a partial
// document.
type AdvisoryLocker struct {
	db      *sql.DB
	timeout time.Duration
}

// AdvisoryOption configures the locker.
type AdvisoryOption func(*AdvisoryLocker)

// WithTimeout bounds lock acquisition plus body execution.
func WithTimeout(timeout time.Duration) AdvisoryOption {
	return func(l *AdvisoryLocker) {
		l.timeout = timeout
	}
}

func NewAdvisoryLocker(db *sql.DB, opts ...AdvisoryOption) *AdvisoryLocker {
	l := &AdvisoryLocker{db: db, timeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *AdvisoryLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	dbtx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lock transaction: %w", err)
	}
	defer func() {
		_ = dbtx.Rollback()
	}()

	// hashtextextended maps the key into the 64-bit advisory lock
	// space; the lock releases with the transaction.
	if _, err := dbtx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	if err := fn(txcontext.WithTx(ctx, dbtx)); err != nil {
		return err
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit lock transaction: %w", err)
	}
	return nil
}
