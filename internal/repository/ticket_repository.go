package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketFilter captures list parameters.
type TicketFilter struct {
	CustomerID *string
	AssigneeID *string
	// IncludeUnassigned widens an AssigneeID filter to the unassigned pool.
	IncludeUnassigned bool
	Statuses          []domain.TicketStatus
	Priorities        []domain.TicketPriority
	SearchTerm        *string
	Limit             int
	Offset            int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// Update writes editable fields only if the assignee is still expectedAssignee.
	Update(ctx context.Context, ticket *domain.Ticket, expectedAssignee *string) error
	// TransitionStatus writes status fields only if the status is still from.
	TransitionStatus(ctx context.Context, ticket *domain.Ticket, from domain.TicketStatus) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListDeadlineCandidates(ctx context.Context, now, horizon time.Time, limit int) ([]domain.Ticket, error)
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
	CountByAssignee(ctx context.Context) (map[string]int, error)
	CountSLABreaches(ctx context.Context) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, status, priority, customer_id, assigned_to_id,
               deadline_forecast, delivery_date, closed_at, execution_time, sla_hours, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, priority, customer_id, assigned_to_id, deadline_forecast, sla_hours, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CustomerID,
		ticket.AssignedToID,
		ticket.DeadlineForecast,
		ticket.SLAHours,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedAssignee *string) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, priority=$3, assigned_to_id=$4,
            deadline_forecast=$5, sla_hours=$6, updated_at=$7
        WHERE id=$8 AND assigned_to_id IS NOT DISTINCT FROM $9`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.AssignedToID,
		ticket.DeadlineForecast,
		ticket.SLAHours,
		ticket.UpdatedAt,
		ticket.ID,
		expectedAssignee,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, ticket.ID)
	}
	return nil
}

func (r *ticketRepository) TransitionStatus(ctx context.Context, ticket *domain.Ticket, from domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET status=$1, delivery_date=$2, closed_at=$3, execution_time=$4, updated_at=$5
        WHERE id=$6 AND status=$7`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.DeliveryDate,
		ticket.ClosedAt,
		ticket.ExecutionTime,
		ticket.UpdatedAt,
		ticket.ID,
		from,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, ticket.ID)
	}
	return nil
}

func (r *ticketRepository) missingOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}
	return ErrConflict
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses, args := filterClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func filterClauses(filter TicketFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		if filter.IncludeUnassigned {
			clauses = append(clauses, fmt.Sprintf("(assigned_to_id=$%d OR assigned_to_id IS NULL)", len(args)))
		} else {
			clauses = append(clauses, fmt.Sprintf("assigned_to_id=$%d", len(args)))
		}
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	return clauses, args
}

// ListDeadlineCandidates returns assigned, active tickets whose deadline
// falls in (now, horizon].
func (r *ticketRepository) ListDeadlineCandidates(ctx context.Context, now, horizon time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE status IN ('OPEN','IN_PROGRESS','WAITING')
          AND assigned_to_id IS NOT NULL
          AND deadline_forecast > $1 AND deadline_forecast <= $2
        ORDER BY deadline_forecast ASC
        LIMIT $3`
	rows, err := r.pool.Query(ctx, query, now, horizon, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var status domain.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		result[status] = count
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountByAssignee(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT assigned_to_id::text, COUNT(*) FROM tickets
        WHERE assigned_to_id IS NOT NULL AND status NOT IN ('CLOSED','CANCELLED')
        GROUP BY assigned_to_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var assignee string
		var count int
		if err := rows.Scan(&assignee, &count); err != nil {
			return nil, err
		}
		result[assignee] = count
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountSLABreaches(ctx context.Context) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE status IN ('DONE','CLOSED')
          AND execution_time IS NOT NULL AND sla_hours IS NOT NULL
          AND execution_time > sla_hours * 60`
	var count int
	err := r.pool.QueryRow(ctx, query).Scan(&count)
	return count, err
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CustomerID,
		&ticket.AssignedToID,
		&ticket.DeadlineForecast,
		&ticket.DeliveryDate,
		&ticket.ClosedAt,
		&ticket.ExecutionTime,
		&ticket.SLAHours,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
