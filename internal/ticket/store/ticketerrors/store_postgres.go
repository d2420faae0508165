package ticketerrors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"interdict/internal/ticket/models"
	"interdict/pkg/domain"
	"interdict/pkg/platform/sentinel"
	txcontext "interdict/pkg/platform/tx"
)

// PostgresStore persists error reports in PostgreSQL.
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

const reportColumns = `ticket_error_id, ticket_id, fqdn, ipv4, ipv6, created_by, created_at`

func (s *PostgresStore) Insert(ctx context.Context, report *models.TicketError) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO ticket_errors (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		report.ID.String(),
		report.TicketID.String(),
		pq.Array(report.FQDN),
		pq.Array(report.IPv4),
		pq.Array(report.IPv6),
		report.CreatedBy.String(),
		report.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert error report: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, reportID domain.TicketErrorID) (*models.TicketError, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+reportColumns+` FROM ticket_errors WHERE ticket_error_id = $1`,
		reportID.String(),
	)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find error report: %w", err)
	}
	return report, nil
}

func (s *PostgresStore) ListByTicket(ctx context.Context, ticketID domain.TicketID) ([]*models.TicketError, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+reportColumns+` FROM ticket_errors
		WHERE ticket_id = $1 ORDER BY created_at ASC`,
		ticketID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list error reports: %w", err)
	}
	defer rows.Close()

	var out []*models.TicketError
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error report: %w", err)
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list error reports: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByTicket(ctx context.Context, ticketID domain.TicketID) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM ticket_errors WHERE ticket_id = $1`,
		ticketID.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete error reports: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.TicketError, error) {
	var (
		report    models.TicketError
		reportID  string
		ticketID  string
		createdBy string
	)
	err := row.Scan(
		&reportID,
		&ticketID,
		pq.Array(&report.FQDN),
		pq.Array(&report.IPv4),
		pq.Array(&report.IPv6),
		&createdBy,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	report.ID = domain.TicketErrorID(reportID)
	report.TicketID = domain.TicketID(ticketID)
	report.CreatedBy = domain.AccountID(createdBy)
	return &report, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
