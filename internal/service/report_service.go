package service

import (
	"context"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ReportService computes dashboard aggregates.
type ReportService struct {
	tickets repository.TicketRepository
	now     func() time.Time
}

// NewReportService creates the service.
func NewReportService(tickets repository.TicketRepository) *ReportService {
	return &ReportService{tickets: tickets, now: time.Now}
}

// Summary holds ticket counts.
type Summary struct {
	Total       int                         `json:"total"`
	ByStatus    map[domain.TicketStatus]int `json:"byStatus"`
	ByAssignee  map[string]int              `json:"byAssignee"`
	SLABreaches int                         `json:"slaBreaches"`
	GeneratedAt time.Time                   `json:"generatedAt"`
}

// Summary returns counts by status, open load per assignee and the number
// of finished tickets that exceeded their SLA hours. Staff only.
func (s *ReportService) Summary(ctx context.Context, principal domain.Principal) (*Summary, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if !principal.Role.Staff() {
		return nil, apperrors.NewForbidden("reports are available to staff only")
	}

	byStatus, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byAssignee, err := s.tickets.CountByAssignee(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	breaches, err := s.tickets.CountSLABreaches(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}
	return &Summary{
		Total:       total,
		ByStatus:    byStatus,
		ByAssignee:  byAssignee,
		SLABreaches: breaches,
		GeneratedAt: s.now().UTC(),
	}, nil
}
