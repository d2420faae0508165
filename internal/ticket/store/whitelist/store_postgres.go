package whitelist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"interdict/internal/ticket/models"
	"interdict/pkg/domain"
	"interdict/pkg/platform/sentinel"
	txcontext "interdict/pkg/platform/tx"
)

// PostgresStore persists whitelist entries in PostgreSQL with value as
// the primary key, matching the one-entry-per-value rule.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const entryColumns = `value, genre, is_active, created_by, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, entry *models.WhitelistEntry) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO whitelist_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Value,
		entry.Genre.String(),
		entry.IsActive,
		entry.CreatedBy.String(),
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert whitelist entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ExistsActive(ctx context.Context, genre models.Genre, value string) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM whitelist_entries
			WHERE value = $1 AND genre = $2 AND is_active
		)`,
		value, genre.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active whitelist entry: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Exists(ctx context.Context, value string) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM whitelist_entries WHERE value = $1)`,
		value,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check whitelist entry: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.WhitelistEntry, error) {
	return s.list(ctx, `
		SELECT `+entryColumns+` FROM whitelist_entries ORDER BY value ASC`)
}

func (s *PostgresStore) ListByCreator(ctx context.Context, creatorID domain.AccountID) ([]*models.WhitelistEntry, error) {
	return s.list(ctx, `
		SELECT `+entryColumns+` FROM whitelist_entries
		WHERE created_by = $1 ORDER BY value ASC`,
		creatorID.String())
}

func (s *PostgresStore) SetActiveFlag(ctx context.Context, value string, flag bool, updatedAt time.Time) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE whitelist_entries SET is_active = $2, updated_at = $3
		WHERE value = $1`,
		value, flag, updatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("set whitelist active flag: %w", err)
	}
	return rowsAffected(result)
}

func (s *PostgresStore) Delete(ctx context.Context, value string, creatorID domain.AccountID) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM whitelist_entries WHERE value = $1 AND created_by = $2`,
		value, creatorID.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete whitelist entry: %w", err)
	}
	return rowsAffected(result)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.WhitelistEntry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list whitelist entries: %w", err)
	}
	defer rows.Close()

	var out []*models.WhitelistEntry
	for rows.Next() {
		var (
			entry     models.WhitelistEntry
			genre     string
			createdBy string
		)
		err := rows.Scan(
			&entry.Value,
			&genre,
			&entry.IsActive,
			&createdBy,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan whitelist entry: %w", err)
		}
		entry.Genre = models.Genre(genre)
		entry.CreatedBy = domain.AccountID(createdBy)
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list whitelist entries: %w", err)
	}
	return out, nil
}

func rowsAffected(result sql.Result) (int, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
