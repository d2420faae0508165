package tickets

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

// PostgresStore persists ticket documents in PostgreSQL, keyed by
// ticket_id. Settings durations are stored as whole seconds.
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

const ticketColumns = `ticket_id, dda_id, description, fqdn, ipv4, ipv6, assigned_to, status,
	revoke_time_seconds, autoclose_time_seconds, report_error_time_seconds,
	tasks, created_by, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, ticket *models.Ticket) error {
	assigned := make([]string, len(ticket.AssignedTo))
	for i, a := range ticket.AssignedTo {
		assigned[i] = a.String()
	}

	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		ticket.ID.String(),
		ticket.DDAID.String(),
		ticket.Description,
		pq.Array(ticket.FQDN),
		pq.Array(ticket.IPv4),
		pq.Array(ticket.IPv6),
		pq.Array(assigned),
		ticket.Status.String(),
		int64(ticket.Settings.RevokeTime.Seconds()),
		int64(ticket.Settings.AutocloseTime.Seconds()),
		int64(ticket.Settings.ReportErrorTime.Seconds()),
		pq.Array(ticket.Tasks),
		ticket.CreatedBy.String(),
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, ticketID domain.TicketID) (*models.Ticket, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`,
		ticketID.String(),
	)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ticket: %w", err)
	}
	return ticket, nil
}

func (s *PostgresStore) FindByDDA(ctx context.Context, ddaID domain.DDAID) (*models.Ticket, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+ticketColumns+` FROM tickets WHERE dda_id = $1 AND dda_id <> '' LIMIT 1`,
		ddaID.String(),
	)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ticket by dda: %w", err)
	}
	return ticket, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Ticket, error) {
	return s.list(ctx, `
		SELECT `+ticketColumns+` FROM tickets ORDER BY created_at DESC`)
}

func (s *PostgresStore) ListByCreator(ctx context.Context, creatorID domain.AccountID) ([]*models.Ticket, error) {
	return s.list(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE created_by = $1 ORDER BY created_at DESC`,
		creatorID.String())
}

func (s *PostgresStore) ListAssigned(ctx context.Context, providerID domain.AccountID) ([]*models.Ticket, error) {
	return s.list(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE $1 = ANY(assigned_to) ORDER BY created_at DESC`,
		providerID.String())
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, ticketID domain.TicketID, status models.TicketStatus, updatedAt time.Time) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE tickets SET status = $2, updated_at = $3 WHERE ticket_id = $1`,
		ticketID.String(), status.String(), updatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("update ticket status: %w", err)
	}
	return rowsAffected(result)
}

func (s *PostgresStore) AppendTasks(ctx context.Context, ticketID domain.TicketID, taskIDs []string, updatedAt time.Time) (int, error) {
	// Append with set semantics: existing references are kept once.
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE tickets
		SET tasks = (
			SELECT ARRAY(
				SELECT DISTINCT unnest(tasks || $2::TEXT[])
			)
		), updated_at = $3
		WHERE ticket_id = $1`,
		ticketID.String(), pq.Array(taskIDs), updatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("append ticket tasks: %w", err)
	}
	return rowsAffected(result)
}

func (s *PostgresStore) Delete(ctx context.Context, ticketID domain.TicketID) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM tickets WHERE ticket_id = $1`,
		ticketID.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete ticket: %w", err)
	}
	return rowsAffected(result)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Ticket, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []*models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*models.Ticket, error) {
	var (
		ticket             models.Ticket
		ticketID           string
		ddaID              string
		assigned           []string
		status             string
		createdBy          string
		revokeSeconds      int64
		autocloseSeconds   int64
		reportErrorSeconds int64
	)
	err := row.Scan(
		&ticketID,
		&ddaID,
		&ticket.Description,
		pq.Array(&ticket.FQDN),
		pq.Array(&ticket.IPv4),
		pq.Array(&ticket.IPv6),
		pq.Array(&assigned),
		&status,
		&revokeSeconds,
		&autocloseSeconds,
		&reportErrorSeconds,
		pq.Array(&ticket.Tasks),
		&createdBy,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ticket.ID = domain.TicketID(ticketID)
	ticket.DDAID = domain.DDAID(ddaID)
	ticket.Status = models.TicketStatus(status)
	ticket.CreatedBy = domain.AccountID(createdBy)
	ticket.Settings = models.TicketSettings{
		RevokeTime:      time.Duration(revokeSeconds) * time.Second,
		AutocloseTime:   time.Duration(autocloseSeconds) * time.Second,
		ReportErrorTime: time.Duration(reportErrorSeconds) * time.Second,
	}
	ticket.AssignedTo = make([]domain.AccountID, len(assigned))
	for i, a := range assigned {
		ticket.AssignedTo[i] = domain.AccountID(a)
	}
	return &ticket, nil
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
