package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Priority         domain.TicketPriority `json:"priority"`
	AssignedToID     *string               `json:"assignedToId"`
	DeadlineForecast *time.Time            `json:"deadlineForecast"`
	SLAHours         *int                  `json:"slaHours"`
	Attachments      []string              `json:"attachments"`
}

// UpdateTicketRequest is a partial update; absent fields are left alone.
// An empty assignedToId unassigns, clearDeadline removes the forecast.
type UpdateTicketRequest struct {
	Title            *string                `json:"title"`
	Description      *string                `json:"description"`
	Priority         *domain.TicketPriority `json:"priority"`
	AssignedToID     *string                `json:"assignedToId"`
	DeadlineForecast *time.Time             `json:"deadlineForecast"`
	ClearDeadline    bool                   `json:"clearDeadline"`
	SLAHours         *int                   `json:"slaHours"`
}

// StatusChangeRequest payload.
type StatusChangeRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// CommentRequest payload.
type CommentRequest struct {
	Message string `json:"message"`
}

// AttachmentsRequest payload.
type AttachmentsRequest struct {
	URLs []string `json:"urls"`
}

// TicketListQuery captures query filters for GET /tickets.
type TicketListQuery struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Search     *string
	Page       int
	PageSize   int
}

// TicketSummary response.
type TicketSummary struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	CustomerID       string                `json:"customerId"`
	AssignedToID     *string               `json:"assignedToId"`
	DeadlineForecast *time.Time            `json:"deadlineForecast,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description   string                  `json:"description"`
	DeliveryDate  *time.Time              `json:"deliveryDate"`
	ClosedAt      *time.Time              `json:"closedAt"`
	ExecutionTime *int                    `json:"executionTime"`
	SLAHours      *int                    `json:"slaHours"`
	SLA           SLAResponse             `json:"sla"`
	NextStatuses  []domain.TicketStatus   `json:"nextStatuses"`
	Messages      []TicketMessageResponse `json:"messages"`
	History       []TicketHistoryResponse `json:"history"`
}

// SLAResponse renders the live SLA window.
type SLAResponse struct {
	Applicable bool       `json:"applicable"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Overdue    bool       `json:"overdue"`
	Label      string     `json:"label"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Type      domain.MessageType `json:"type"`
	Content   string             `json:"content,omitempty"`
	FileURL   *string            `json:"fileUrl,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// TicketHistoryResponse represents one audit entry.
type TicketHistoryResponse struct {
	ID         string               `json:"id"`
	ActionType domain.HistoryAction `json:"actionType"`
	OldValue   *string              `json:"oldValue"`
	NewValue   *string              `json:"newValue"`
	UserID     string               `json:"userId"`
	CreatedAt  time.Time            `json:"createdAt"`
}
