package realtime

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/policy"
)

// PingType marks heartbeat messages. Clients must not refetch state on it.
const PingType = "ping"

// Envelope renders an event as a push message: the payload fields flattened
// alongside type, ticketId and ts (unix millis).
func Envelope(evt events.Event) ([]byte, error) {
	msg := map[string]any{}
	if evt.Payload != nil {
		raw, err := json.Marshal(evt.Payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			msg = map[string]any{"data": json.RawMessage(raw)}
		}
	}
	msg["type"] = string(evt.Type)
	if evt.TicketID != "" {
		msg["ticketId"] = evt.TicketID
	}
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	msg["ts"] = ts.UnixMilli()
	return json.Marshal(msg)
}

// Ping renders a heartbeat message.
func Ping(now time.Time) []byte {
	raw, _ := json.Marshal(map[string]any{"type": PingType, "ts": now.UnixMilli()})
	return raw
}

// Visible reports whether principal may receive evt. It applies the ticket
// view rule to the event's ownership fields, so a technician only hears about
// tickets assigned to them or still in the unassigned pool. A technician who
// loses a ticket is still sent the ticket:assigned event that moved it away.
func Visible(principal domain.Principal, evt events.Event) bool {
	ticket := &domain.Ticket{ID: evt.TicketID, CustomerID: evt.CustomerID, AssignedToID: evt.AssigneeID}
	if policy.CanAct(principal, policy.ActionView, ticket) {
		return true
	}
	return evt.Type == events.EventTicketAssigned &&
		principal.Role == domain.RoleTech &&
		previousAssignee(evt) == principal.UserID
}

// previousAssignee reads the "from" side of an assignment. Events relayed
// from other instances arrive with the payload decoded as a map.
func previousAssignee(evt events.Event) string {
	var from *string
	switch p := evt.Payload.(type) {
	case events.TicketAssignedPayload:
		from = p.From
	case *events.TicketAssignedPayload:
		if p != nil {
			from = p.From
		}
	case map[string]any:
		if v, ok := p["from"].(string); ok {
			return v
		}
	}
	if from == nil {
		return ""
	}
	return *from
}
