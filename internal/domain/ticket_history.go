package domain

import "time"

// HistoryAction captures what changed in a history entry.
type HistoryAction string

const (
	HistoryActionStatusChange   HistoryAction = "STATUS_CHANGE"
	HistoryActionAssignment     HistoryAction = "ASSIGNMENT"
	HistoryActionPriorityChange HistoryAction = "PRIORITY_CHANGE"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         string
	TicketID   string
	ActionType HistoryAction
	OldValue   *string
	NewValue   *string
	UserID     string
	CreatedAt  time.Time
}
