package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketMessageRepository manages ticket thread messages.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	CreateBatch(ctx context.Context, msgs []*domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

const insertMessage = `
        INSERT INTO ticket_messages (ticket_id, user_id, type, content, file_url)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	return r.pool.QueryRow(ctx, insertMessage,
		msg.TicketID,
		msg.UserID,
		msg.Type,
		msg.Content,
		msg.FileURL,
	).Scan(&msg.ID, &msg.CreatedAt)
}

// CreateBatch inserts all messages in one round trip and one transaction.
func (r *ticketMessageRepository) CreateBatch(ctx context.Context, msgs []*domain.TicketMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, msg := range msgs {
			msg := msg
			batch.Queue(insertMessage, msg.TicketID, msg.UserID, msg.Type, msg.Content, msg.FileURL).
				QueryRow(func(row pgx.Row) error {
					return row.Scan(&msg.ID, &msg.CreatedAt)
				})
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, user_id, type, content, file_url, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.UserID,
			&msg.Type,
			&msg.Content,
			&msg.FileURL,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
