package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/sla"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ReminderSender delivers one deadline reminder and reports the outcome.
type ReminderSender interface {
	SendDeadlineReminder(ctx context.Context, ticket *domain.Ticket, level sla.ReminderLevel) error
}

// ReminderService sends deadline reminders for assigned tickets. It only
// reads tickets and is safe to run concurrently with itself.
type ReminderService struct {
	tickets    repository.TicketRepository
	ledger     repository.ReminderLedger
	sender     ReminderSender
	batchLimit int
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// ReminderDependencies bundles collaborators for the reminder sweep.
type ReminderDependencies struct {
	TicketRepo repository.TicketRepository
	Ledger     repository.ReminderLedger
	Sender     ReminderSender
	BatchLimit int
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewReminderService creates the service.
func NewReminderService(deps ReminderDependencies) *ReminderService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		tickets:    deps.TicketRepo,
		ledger:     deps.Ledger,
		sender:     deps.Sender,
		batchLimit: deps.BatchLimit,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sweep sends every reminder due at now that has not been sent before.
func (s *ReminderService) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	candidates, err := s.tickets.ListDeadlineCandidates(ctx, now, now.Add(24*time.Hour), s.batchLimit)
	if err != nil {
		return result, apperrors.MapError(err)
	}

	for i := range candidates {
		ticket := &candidates[i]
		result.Scanned++
		if ticket.DeadlineForecast == nil || ticket.AssignedToID == nil || ticket.Status.Terminal() || ticket.Status == domain.TicketStatusDone {
			continue
		}
		deadline := *ticket.DeadlineForecast
		level, due := sla.ReminderDue(deadline, now)
		if !due {
			continue
		}

		claimed, err := s.ledger.Claim(ctx, ticket.ID, string(level), deadline)
		if err != nil {
			result.Failed++
			s.logger.Warn("reminder ledger unavailable", zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		if !claimed {
			result.Skipped++
			continue
		}

		if err := s.sender.SendDeadlineReminder(ctx, ticket, level); err != nil {
			result.Failed++
			s.logger.Warn("reminder send failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("level", string(level)),
				zap.Error(err))
			if relErr := s.ledger.Release(context.WithoutCancel(ctx), ticket.ID, string(level), deadline); relErr != nil {
				s.logger.Error("reminder release failed", zap.String("ticket_id", ticket.ID), zap.Error(relErr))
			}
			continue
		}
		result.Sent++
		s.metrics.ReminderSent()
	}

	s.logger.Info("reminder sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}
