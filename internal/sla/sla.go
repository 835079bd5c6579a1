// Package sla derives resolution windows, breach state and reminder levels
// from ticket priority and timestamps.
package sla

import (
	"fmt"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

const day = 24 * time.Hour

var windows = map[domain.TicketPriority]time.Duration{
	domain.TicketPriorityLow:      30 * day,
	domain.TicketPriorityMedium:   7 * day,
	domain.TicketPriorityHigh:     2 * day,
	domain.TicketPriorityCritical: 0,
}

// Window returns the target resolution window for a priority. Unknown
// priorities fall back to the MEDIUM window.
func Window(priority domain.TicketPriority) time.Duration {
	if w, ok := windows[priority]; ok {
		return w
	}
	return windows[domain.TicketPriorityMedium]
}

// Status is the SLA position of a ticket at a point in time.
type Status struct {
	Applicable bool
	Window     time.Duration
	Deadline   time.Time
	Overdue    bool
	Remaining  time.Duration
	OverdueBy  time.Duration
}

// Label renders the status for display, e.g. "due in 1d 4h" or "overdue by 1h 0m".
func (s Status) Label() string {
	if !s.Applicable {
		return "not applicable"
	}
	if s.Overdue {
		return "overdue by " + FormatDuration(s.OverdueBy)
	}
	return "due in " + FormatDuration(s.Remaining)
}

// Evaluate computes the SLA status of a ticket of the given priority whose
// clock started at reference.
func Evaluate(priority domain.TicketPriority, reference, now time.Time) Status {
	window := Window(priority)
	elapsed := now.Sub(reference)
	if elapsed < 0 {
		elapsed = 0
	}
	status := Status{
		Applicable: true,
		Window:     window,
		Deadline:   reference.Add(window),
	}
	if elapsed > window {
		status.Overdue = true
		status.OverdueBy = elapsed - window
	} else {
		status.Remaining = window - elapsed
	}
	return status
}

// ForTicket evaluates a ticket against its priority window, measured from its
// last update. Tickets already delivered or finished have no live window.
func ForTicket(ticket *domain.Ticket, now time.Time) Status {
	if ticket == nil {
		return Status{}
	}
	switch ticket.Status {
	case domain.TicketStatusDone, domain.TicketStatusClosed, domain.TicketStatusCancelled:
		return Status{Window: Window(ticket.Priority)}
	}
	reference := ticket.UpdatedAt
	if reference.IsZero() {
		reference = ticket.CreatedAt
	}
	return Evaluate(ticket.Priority, reference, now)
}

// FormatDuration renders d as "Nd Mh", "Mh Nm" or "Nm", truncating and never
// going below zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / day)
	hours := int((d % day) / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Breached reports whether a delivered or closed ticket took longer than its
// configured SLA budget.
func Breached(ticket *domain.Ticket) bool {
	if ticket == nil || ticket.ExecutionTime == nil || ticket.SLAHours == nil {
		return false
	}
	if ticket.Status != domain.TicketStatusClosed && ticket.Status != domain.TicketStatusDone {
		return false
	}
	return *ticket.ExecutionTime > *ticket.SLAHours*60
}

// ExecutionMinutes returns the minutes between start and end rounded to the
// nearest minute, clamped at zero.
func ExecutionMinutes(start, end time.Time) int {
	minutes := int(end.Sub(start).Round(time.Minute) / time.Minute)
	if minutes < 0 {
		return 0
	}
	return minutes
}
