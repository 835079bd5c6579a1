package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
)

// Summarizer produces the dashboard summary.
type Summarizer interface {
	Summary(ctx context.Context, principal domain.Principal) (*service.Summary, error)
}

// ReportsHandler serves dashboard aggregates.
type ReportsHandler struct {
	reports Summarizer
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reports Summarizer) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// Summary GET /reports/summary.
func (h *ReportsHandler) Summary(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	summary, err := h.reports.Summary(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}
