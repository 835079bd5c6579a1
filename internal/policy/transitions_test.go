package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

var allStatuses = []domain.TicketStatus{
	domain.TicketStatusOpen,
	domain.TicketStatusInProgress,
	domain.TicketStatusWaiting,
	domain.TicketStatusDone,
	domain.TicketStatusClosed,
	domain.TicketStatusCancelled,
}

func TestCanTransition(t *testing.T) {
	legal := map[[2]domain.TicketStatus]bool{
		{domain.TicketStatusOpen, domain.TicketStatusInProgress}:      true,
		{domain.TicketStatusOpen, domain.TicketStatusWaiting}:         true,
		{domain.TicketStatusOpen, domain.TicketStatusCancelled}:       true,
		{domain.TicketStatusInProgress, domain.TicketStatusOpen}:      true,
		{domain.TicketStatusInProgress, domain.TicketStatusWaiting}:   true,
		{domain.TicketStatusInProgress, domain.TicketStatusDone}:      true,
		{domain.TicketStatusInProgress, domain.TicketStatusCancelled}: true,
		{domain.TicketStatusWaiting, domain.TicketStatusInProgress}:   true,
		{domain.TicketStatusWaiting, domain.TicketStatusCancelled}:    true,
		{domain.TicketStatusDone, domain.TicketStatusClosed}:          true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := legal[[2]domain.TicketStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	assert.Empty(t, NextStatuses(domain.TicketStatusClosed))
	assert.Empty(t, NextStatuses(domain.TicketStatusCancelled))
}

func TestClosedOnlyReachableFromDone(t *testing.T) {
	for _, from := range allStatuses {
		if from == domain.TicketStatusDone {
			continue
		}
		assert.False(t, CanTransition(from, domain.TicketStatusClosed), "from %s", from)
	}
}

func TestValidateTransitionNamesPair(t *testing.T) {
	err := ValidateTransition(domain.TicketStatusInProgress, domain.TicketStatusClosed)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "IN_PROGRESS", domainErr.Details["from"])
	assert.Equal(t, "CLOSED", domainErr.Details["to"])
	assert.Contains(t, domainErr.Message, "IN_PROGRESS")

	assert.NoError(t, ValidateTransition(domain.TicketStatusDone, domain.TicketStatusClosed))
}

func TestNextStatusesReturnsCopy(t *testing.T) {
	next := NextStatuses(domain.TicketStatusOpen)
	next[0] = domain.TicketStatusClosed
	assert.Equal(t, domain.TicketStatusInProgress, NextStatuses(domain.TicketStatusOpen)[0])
}
