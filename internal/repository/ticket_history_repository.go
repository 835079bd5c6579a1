package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketHistoryRepository appends and reads the audit trail. Entries are
// never updated once written.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

// Create keeps the caller's CreatedAt so entries order by the service clock;
// a zero value falls back to the database time.
func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	var at *time.Time
	if !entry.CreatedAt.IsZero() {
		at = &entry.CreatedAt
	}
	return r.pool.QueryRow(ctx, `
        INSERT INTO ticket_history (ticket_id, action_type, old_value, new_value, user_id, created_at)
        VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
        RETURNING id, created_at`,
		entry.TicketID, entry.ActionType, entry.OldValue, entry.NewValue, entry.UserID, at,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ListByTicket returns the trail oldest first. Columns are selected in
// domain.TicketHistory field order.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, ticket_id, action_type, old_value, new_value, user_id, created_at
        FROM ticket_history
        WHERE ticket_id = $1
        ORDER BY created_at ASC, id ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.TicketHistory])
}
