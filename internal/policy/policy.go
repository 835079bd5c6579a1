// Package policy decides who may do what to a ticket and which status
// changes are legal. Everything here is pure: no I/O, no clocks.
package policy

import "github.com/spec-kit/support-desk/internal/domain"

// Action is an operation gated by the policy.
type Action string

const (
	ActionView         Action = "view"
	ActionComment      Action = "comment"
	ActionAttach       Action = "attach"
	ActionEditBasic    Action = "edit_basic"
	ActionEditAdvanced Action = "edit_advanced"
	ActionChangeStatus Action = "change_status"
	ActionDelete       Action = "delete"
	ActionClaim        Action = "claim"
)

// CanAct reports whether principal may perform action on ticket. A nil ticket
// or an unauthenticated principal is never allowed anything.
func CanAct(principal domain.Principal, action Action, ticket *domain.Ticket) bool {
	if ticket == nil || !principal.Authenticated() {
		return false
	}
	admin := principal.Role == domain.RoleAdmin
	owner := ticket.CustomerID == principal.UserID
	assignedTech := principal.Role == domain.RoleTech && ticket.IsAssignedTo(principal.UserID)

	switch action {
	case ActionView:
		// technicians browse the unassigned pool before claiming
		pool := principal.Role == domain.RoleTech && ticket.Unassigned()
		return admin || owner || assignedTech || pool
	case ActionComment, ActionAttach, ActionEditBasic:
		return admin || owner || assignedTech
	case ActionEditAdvanced, ActionChangeStatus:
		// ownership alone never grants these, even on one's own ticket
		return admin || assignedTech
	case ActionDelete:
		return admin
	case ActionClaim:
		if !principal.Role.Staff() {
			return false
		}
		return ticket.Unassigned() || ticket.IsAssignedTo(principal.UserID)
	}
	return false
}

// Denial returns the user-facing reason an action was refused.
func Denial(action Action) string {
	switch action {
	case ActionView:
		return "you do not have access to this ticket"
	case ActionComment, ActionAttach:
		return "only the customer, the assigned technician or an administrator can post on this ticket"
	case ActionEditBasic:
		return "you cannot edit this ticket"
	case ActionEditAdvanced:
		return "only the assigned technician or an administrator can change priority, assignment or deadlines"
	case ActionChangeStatus:
		return "only the assigned technician or an administrator can change the status"
	case ActionDelete:
		return "only administrators can delete tickets"
	case ActionClaim:
		return "ticket is already assigned to someone else"
	}
	return "action not permitted"
}
