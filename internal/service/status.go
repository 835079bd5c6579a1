package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/sla"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// UpdateStatus moves a ticket along the status machine. The write is
// conditional on the status read here; losing a race yields Conflict.
func (s *TicketService) UpdateStatus(ctx context.Context, principal domain.Principal, ticketID string, target domain.TicketStatus) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.UpdateStatus", trace.WithAttributes(
		attribute.String("ticket.id", ticketID),
		attribute.String("ticket.status.to", string(target)),
	))
	defer span.End()

	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": "unknown status " + string(target)})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(principal, policy.ActionChangeStatus, ticket); err != nil {
		return nil, err
	}
	if err := policy.ValidateTransition(ticket.Status, target); err != nil {
		return nil, err
	}

	from := ticket.Status
	next := *ticket
	applyTransition(&next, target, s.now())

	if err := s.tickets.TransitionStatus(ctx, &next, from); err != nil {
		return nil, mapWriteError(err, ticket.ID)
	}
	s.logger.Info("ticket status changed",
		zap.String("ticket_id", next.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor_id", principal.UserID))

	s.recordHistory(ctx, next.ID, principal.UserID, domain.HistoryActionStatusChange, strPtr(string(from)), strPtr(string(target)))

	if (target == domain.TicketStatusClosed || target == domain.TicketStatusCancelled) && s.notifier != nil {
		s.notifier.TicketStatusChanged(ctx, &next, target)
	}

	s.publish(ctx, events.NewTicketEvent(events.EventTicketStatus, &next, principal.UserID, events.TicketStatusPayload{
		From: from,
		To:   target,
	}, next.UpdatedAt))
	return &next, nil
}

// applyTransition sets the status and its timestamp side effects.
func applyTransition(ticket *domain.Ticket, target domain.TicketStatus, now time.Time) {
	switch target {
	case domain.TicketStatusDone:
		if ticket.DeliveryDate == nil {
			delivered := now
			ticket.DeliveryDate = &delivered
		}
	case domain.TicketStatusClosed:
		closed := now
		ticket.ClosedAt = &closed
		start := ticket.CreatedAt
		if ticket.DeliveryDate != nil {
			start = *ticket.DeliveryDate
		}
		minutes := sla.ExecutionMinutes(start, now)
		ticket.ExecutionTime = &minutes
	}
	ticket.Status = target
	ticket.UpdatedAt = now
}
