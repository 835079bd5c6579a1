package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers. The values double as
// the `type` field of realtime push messages.
type EventType string

const (
	EventTicketCreated     EventType = "ticket:created"
	EventTicketCommented   EventType = "ticket:commented"
	EventTicketAttachments EventType = "ticket:attachments"
	EventTicketStatus      EventType = "ticket:status"
	EventTicketAssigned    EventType = "ticket:assigned"
	EventTicketUpdated     EventType = "ticket:updated"
	EventTicketDeleted     EventType = "ticket:deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	TicketID   string    `json:"ticket_id"`
	CustomerID string    `json:"customer_id"`
	AssigneeID *string   `json:"assignee_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
	// Origin is empty for events raised in this process and carries the
	// relaying instance id for events received from other instances.
	Origin string `json:"origin,omitempty"`
}

// NewTicketEvent stamps an event for the given ticket as it is after the change.
func NewTicketEvent(eventType EventType, ticket *domain.Ticket, actorID string, payload any, at time.Time) Event {
	evt := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
	if ticket != nil {
		evt.TicketID = ticket.ID
		evt.CustomerID = ticket.CustomerID
		if ticket.AssignedToID != nil {
			assignee := *ticket.AssignedToID
			evt.AssigneeID = &assignee
		}
	}
	return evt
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
	Status   domain.TicketStatus   `json:"status"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	MessageID string `json:"messageId"`
	Preview   string `json:"preview"`
}

// TicketAttachmentsPayload payload.
type TicketAttachmentsPayload struct {
	Count int `json:"count"`
}

// TicketStatusPayload payload.
type TicketStatusPayload struct {
	From domain.TicketStatus `json:"from"`
	To   domain.TicketStatus `json:"to"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	From *string `json:"from,omitempty"`
	To   *string `json:"to,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Title string `json:"title"`
}
