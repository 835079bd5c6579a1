package domain

import "time"

// MessageType differentiates comments from attachments.
type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
)

// TicketMessage captures communications in a ticket thread. Attachments are
// IMAGE messages whose FileURL references external storage.
type TicketMessage struct {
	ID        string
	TicketID  string
	UserID    string
	Type      MessageType
	Content   string
	FileURL   *string
	CreatedAt time.Time
}
