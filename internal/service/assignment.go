package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// UpdateTicketInput is a partial update. Nil fields are left untouched.
// AssignedToID pointing at "" unassigns; ClearDeadline removes the forecast.
type UpdateTicketInput struct {
	Title            *string
	Description      *string
	Priority         *domain.TicketPriority
	AssignedToID     *string
	DeadlineForecast *time.Time
	ClearDeadline    bool
	SLAHours         *int
}

// UpdateTicket applies the subset of input the principal may change. Basic
// fields (title, description) and advanced fields (priority, assignment,
// deadline, SLA hours) are gated separately; fields the principal may not
// touch are dropped rather than failing the request.
func (s *TicketService) UpdateTicket(ctx context.Context, principal domain.Principal, ticketID string, input UpdateTicketInput) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.UpdateTicket", trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer span.End()

	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if err := validateUpdate(input); err != nil {
		return nil, err
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	canBasic := policy.CanAct(principal, policy.ActionEditBasic, ticket)
	canAdvanced := policy.CanAct(principal, policy.ActionEditAdvanced, ticket)
	if !canBasic && !canAdvanced {
		return nil, apperrors.NewForbidden(policy.Denial(policy.ActionEditBasic))
	}

	next := *ticket
	var changed []string

	if canBasic {
		if input.Title != nil {
			if title := strings.TrimSpace(*input.Title); title != next.Title {
				next.Title = title
				changed = append(changed, "title")
			}
		}
		if input.Description != nil {
			if description := strings.TrimSpace(*input.Description); description != next.Description {
				next.Description = description
				changed = append(changed, "description")
			}
		}
	}

	priorityChanged := false
	assignmentChanged := false
	if canAdvanced {
		if input.Priority != nil && *input.Priority != next.Priority {
			next.Priority = *input.Priority
			priorityChanged = true
			changed = append(changed, "priority")
		}
		if input.AssignedToID != nil {
			var target *string
			if *input.AssignedToID != "" {
				id := *input.AssignedToID
				target = &id
			}
			if !sameAssignee(next.AssignedToID, target) {
				if target != nil {
					if err := s.ensureAssignable(ctx, *target); err != nil {
						return nil, err
					}
				}
				next.AssignedToID = target
				assignmentChanged = true
			}
		}
		if input.ClearDeadline && next.DeadlineForecast != nil {
			next.DeadlineForecast = nil
			changed = append(changed, "deadlineForecast")
		} else if input.DeadlineForecast != nil && !sameTime(next.DeadlineForecast, input.DeadlineForecast) {
			deadline := *input.DeadlineForecast
			next.DeadlineForecast = &deadline
			changed = append(changed, "deadlineForecast")
		}
		if input.SLAHours != nil && (next.SLAHours == nil || *next.SLAHours != *input.SLAHours) {
			hours := *input.SLAHours
			next.SLAHours = &hours
			changed = append(changed, "slaHours")
		}
	}

	if len(changed) == 0 && !assignmentChanged {
		return ticket, nil
	}

	now := s.now()
	next.UpdatedAt = now
	if err := s.tickets.Update(ctx, &next, ticket.AssignedToID); err != nil {
		return nil, mapWriteError(err, ticket.ID)
	}

	if priorityChanged {
		s.recordHistory(ctx, next.ID, principal.UserID, domain.HistoryActionPriorityChange,
			strPtr(string(ticket.Priority)), strPtr(string(next.Priority)))
	}
	if assignmentChanged {
		s.recordHistory(ctx, next.ID, principal.UserID, domain.HistoryActionAssignment, ticket.AssignedToID, next.AssignedToID)
		if next.AssignedToID != nil && s.notifier != nil {
			s.notifier.TicketAssigned(ctx, &next, *next.AssignedToID)
		}
		s.publish(ctx, events.NewTicketEvent(events.EventTicketAssigned, &next, principal.UserID, events.TicketAssignedPayload{
			From: ticket.AssignedToID,
			To:   next.AssignedToID,
		}, now))
	}
	if len(changed) > 0 {
		s.publish(ctx, events.NewTicketEvent(events.EventTicketUpdated, &next, principal.UserID, events.TicketUpdatedPayload{
			Fields: changed,
		}, now))
	}
	return &next, nil
}

// AssignToMe assigns the ticket to the calling staff member. Calling it
// when already assigned to oneself is a successful no-op.
func (s *TicketService) AssignToMe(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.AssignToMe", trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer span.End()

	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if !principal.Role.Staff() {
		return nil, apperrors.NewForbidden("only technicians and administrators can take tickets")
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsAssignedTo(principal.UserID) {
		return ticket, nil
	}
	if err := authorize(principal, policy.ActionClaim, ticket); err != nil {
		return nil, err
	}

	next := *ticket
	self := principal.UserID
	next.AssignedToID = &self
	next.UpdatedAt = s.now()

	if err := s.tickets.Update(ctx, &next, ticket.AssignedToID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// a concurrent call by the same principal already won
			if current, loadErr := s.loadTicket(ctx, ticketID); loadErr == nil && current.IsAssignedTo(principal.UserID) {
				return current, nil
			}
		}
		return nil, mapWriteError(err, ticket.ID)
	}

	s.recordHistory(ctx, next.ID, principal.UserID, domain.HistoryActionAssignment, ticket.AssignedToID, next.AssignedToID)
	s.publish(ctx, events.NewTicketEvent(events.EventTicketAssigned, &next, principal.UserID, events.TicketAssignedPayload{
		From: ticket.AssignedToID,
		To:   next.AssignedToID,
	}, next.UpdatedAt))
	return &next, nil
}

func validateUpdate(input UpdateTicketInput) error {
	fields := map[string]any{}
	if input.Title != nil && utf8.RuneCountInString(strings.TrimSpace(*input.Title)) < minTitleLength {
		fields["title"] = "must be at least 3 characters"
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) == "" {
		fields["description"] = "must not be empty"
	}
	if input.Priority != nil && !input.Priority.Valid() {
		fields["priority"] = "must be one of LOW, MEDIUM, HIGH, CRITICAL"
	}
	if input.SLAHours != nil && *input.SLAHours <= 0 {
		fields["slaHours"] = "must be positive"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid ticket update", fields)
	}
	return nil
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
