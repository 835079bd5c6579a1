package mailer

import (
	"fmt"
	"html"
	"strings"
)

// TicketRef is the minimal ticket view used in email bodies.
type TicketRef struct {
	ID    string
	Title string
	URL   string
}

// AssignedEmail tells a staff member a ticket was assigned to them.
func AssignedEmail(to string, ticket TicketRef) Email {
	subject := fmt.Sprintf("Ticket assigned: %s", ticket.Title)
	text := fmt.Sprintf("You have been assigned ticket %q.\n\n%s\n", ticket.Title, ticket.URL)
	return Email{To: to, Subject: subject, Text: text, HTML: htmlBody("You have been assigned a ticket.", ticket)}
}

// StatusEmail tells a customer their ticket reached a final status.
func StatusEmail(to string, ticket TicketRef, status string) Email {
	label := strings.ToLower(status)
	subject := fmt.Sprintf("Ticket %s: %s", label, ticket.Title)
	text := fmt.Sprintf("Your ticket %q is now %s.\n\n%s\n", ticket.Title, label, ticket.URL)
	return Email{To: to, Subject: subject, Text: text, HTML: htmlBody("Your ticket is now "+label+".", ticket)}
}

// ReminderEmail warns an assignee that a ticket deadline is close. label is
// the reminder text, e.g. "2 hours remaining".
func ReminderEmail(to string, ticket TicketRef, label string) Email {
	subject := fmt.Sprintf("%s: %s", label, ticket.Title)
	text := fmt.Sprintf("Ticket %q is due soon (%s).\n\n%s\n", ticket.Title, label, ticket.URL)
	return Email{To: to, Subject: subject, Text: text, HTML: htmlBody(label+" before the deadline.", ticket)}
}

func htmlBody(lead string, ticket TicketRef) string {
	return fmt.Sprintf(`<p>%s</p><p><strong>%s</strong></p><p><a href="%s">Open ticket</a></p>`,
		html.EscapeString(lead), html.EscapeString(ticket.Title), html.EscapeString(ticket.URL))
}
