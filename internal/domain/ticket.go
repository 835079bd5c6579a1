package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusWaiting    TicketStatus = "WAITING"
	TicketStatusDone       TicketStatus = "DONE"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaiting,
		TicketStatusDone, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed || s == TicketStatusCancelled
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID               string
	Title            string
	Description      string
	Status           TicketStatus
	Priority         TicketPriority
	CustomerID       string
	AssignedToID     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeadlineForecast *time.Time
	DeliveryDate     *time.Time
	ClosedAt         *time.Time
	// ExecutionTime is in minutes and only set when the ticket is closed.
	ExecutionTime *int
	SLAHours      *int
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssignedToID != nil && *t.AssignedToID == userID
}

// Unassigned reports whether nobody is assigned.
func (t *Ticket) Unassigned() bool {
	return t.AssignedToID == nil || *t.AssignedToID == ""
}
