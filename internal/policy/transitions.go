package policy

import (
	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// InitialStatus is the only status a ticket can be created in.
const InitialStatus = domain.TicketStatusOpen

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusWaiting, domain.TicketStatusCancelled},
	domain.TicketStatusInProgress: {domain.TicketStatusOpen, domain.TicketStatusWaiting, domain.TicketStatusDone, domain.TicketStatusCancelled},
	domain.TicketStatusWaiting:    {domain.TicketStatusInProgress, domain.TicketStatusCancelled},
	domain.TicketStatusDone:       {domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {},
	domain.TicketStatusCancelled:  {},
}

// CanTransition reports whether current → next is a legal status change.
func CanTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns an InvalidTransition error naming the pair when
// current → next is not allowed.
func ValidateTransition(current, next domain.TicketStatus) error {
	if !CanTransition(current, next) {
		return apperrors.NewInvalidTransition(string(current), string(next))
	}
	return nil
}

// NextStatuses lists the statuses reachable from current.
func NextStatuses(current domain.TicketStatus) []domain.TicketStatus {
	next := allowedTransitions[current]
	out := make([]domain.TicketStatus, len(next))
	copy(out, next)
	return out
}
