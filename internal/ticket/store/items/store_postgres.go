package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"interdict/internal/ticket/models"
	"interdict/internal/ticket/ports"
	"interdict/pkg/domain"
	"interdict/pkg/platform/sentinel"
	txcontext "interdict/pkg/platform/tx"
)

// PostgresStore persists ticket item documents in PostgreSQL. The
// available predicate (active, not duplicate, not whitelisted, not in
// error) is expressed inline so the dedup index and the guarded update
// see the same definition the domain model uses.
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

const itemColumns = `ticket_item_id, ticket_id, value, genre, provider_id, status, reason,
	is_duplicate, is_whitelisted, is_error, is_active, provider_timestamp, note,
	created_at, updated_at`

const availablePredicate = `is_active AND NOT is_duplicate AND NOT is_whitelisted AND NOT is_error`

func (s *PostgresStore) Insert(ctx context.Context, item *models.TicketItem) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO ticket_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		item.ID.String(),
		item.TicketID.String(),
		item.Value,
		item.Genre.String(),
		item.ProviderID.String(),
		item.Status.String(),
		item.Reason,
		item.IsDuplicate,
		item.IsWhitelisted,
		item.IsError,
		item.IsActive,
		item.Timestamp,
		item.Note,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ticket item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, ticketID domain.TicketID, value string) (*models.TicketItem, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM ticket_items
		WHERE ticket_id = $1 AND value = $2 LIMIT 1`,
		ticketID.String(), value,
	)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ticket item: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListByTicket(ctx context.Context, ticketID domain.TicketID) ([]*models.TicketItem, error) {
	return s.list(ctx, `
		SELECT `+itemColumns+` FROM ticket_items
		WHERE ticket_id = $1 ORDER BY created_at ASC`,
		ticketID.String())
}

func (s *PostgresStore) ListAvailableByTicket(ctx context.Context, ticketID domain.TicketID) ([]*models.TicketItem, error) {
	return s.list(ctx, `
		SELECT `+itemColumns+` FROM ticket_items
		WHERE ticket_id = $1 AND `+availablePredicate+`
		ORDER BY created_at ASC`,
		ticketID.String())
}

func (s *PostgresStore) ListAvailableByProvider(ctx context.Context, providerID domain.AccountID, value string) ([]*models.TicketItem, error) {
	return s.list(ctx, `
		SELECT `+itemColumns+` FROM ticket_items
		WHERE provider_id = $1 AND value = $2 AND `+availablePredicate+`
		ORDER BY created_at ASC`,
		providerID.String(), value)
}

func (s *PostgresStore) ExistsAvailable(ctx context.Context, genre models.Genre, value string) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ticket_items
			WHERE genre = $1 AND value = $2 AND `+availablePredicate+`
		)`,
		genre.String(), value,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check available item: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DistinctActiveValues(ctx context.Context, genre models.Genre) ([]string, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT DISTINCT value FROM ticket_items
		WHERE genre = $1 AND is_active ORDER BY value ASC`,
		genre.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list active values: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan active value: %w", err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active values: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, update ports.ItemUpdate) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE ticket_items
		SET status = $4, reason = $5, note = $6, provider_timestamp = $7, updated_at = $8
		WHERE ticket_id = $1 AND provider_id = $2 AND value = $3 AND `+availablePredicate,
		update.TicketID.String(),
		update.ProviderID.String(),
		update.Value,
		update.Status.String(),
		update.Reason,
		update.Note,
		update.Timestamp,
		update.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("update item status: %w", err)
	}
	return rowsAffected(result)
}

func (s *PostgresStore) SetErrorFlag(ctx context.Context, ticketID domain.TicketID, value string, flag bool, updatedAt time.Time) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE ticket_items SET is_error = $3, updated_at = $4
		WHERE ticket_id = $1 AND value = $2`,
		ticketID.String(), value, flag, updatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("set item error flag: %w", err)
	}
	return rowsAffected(result)
}

func (s *PostgresStore) SetActiveFlag(ctx context.Context, value string, flag bool, updatedAt time.Time) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE ticket_items SET is_active = $2, updated_at = $3
		WHERE value = $1`,
		value, flag, updatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("set item active flag: %w", err)
	}
	return rowsAffected(result)
}

func (s *PostgresStore) DeleteByTicket(ctx context.Context, ticketID domain.TicketID) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM ticket_items WHERE ticket_id = $1`,
		ticketID.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete ticket items: %w", err)
	}
	return rowsAffected(result)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.TicketItem, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ticket items: %w", err)
	}
	defer rows.Close()

	var out []*models.TicketItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ticket items: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.TicketItem, error) {
	var (
		item       models.TicketItem
		itemID     string
		ticketID   string
		genre      string
		providerID string
		status     string
		timestamp  sql.NullTime
	)
	err := row.Scan(
		&itemID,
		&ticketID,
		&item.Value,
		&genre,
		&providerID,
		&status,
		&item.Reason,
		&item.IsDuplicate,
		&item.IsWhitelisted,
		&item.IsError,
		&item.IsActive,
		&timestamp,
		&item.Note,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.ID = domain.TicketItemID(itemID)
	item.TicketID = domain.TicketID(ticketID)
	item.Genre = models.Genre(genre)
	item.ProviderID = domain.AccountID(providerID)
	item.Status = models.ItemStatus(status)
	if timestamp.Valid {
		ts := timestamp.Time
		item.Timestamp = &ts
	}
	return &item, nil
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
