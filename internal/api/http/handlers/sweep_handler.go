package handlers

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// Sweeper runs one reminder sweep.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (service.SweepResult, error)
}

// SweepHandler lets an external scheduler trigger the reminder sweep.
type SweepHandler struct {
	sweeper Sweeper
	secret  []byte
	now     func() time.Time
}

// NewSweepHandler constructs handler. An empty secret disables the endpoint.
func NewSweepHandler(sweeper Sweeper, secret string) *SweepHandler {
	return &SweepHandler{sweeper: sweeper, secret: []byte(secret), now: time.Now}
}

// Sweep POST /internal/sla/sweep.
func (h *SweepHandler) Sweep(c *fiber.Ctx) error {
	if len(h.secret) == 0 {
		return apperrors.NewForbidden("sweep endpoint disabled")
	}
	header := c.Get(fiber.HeaderAuthorization)
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), h.secret) != 1 {
		return apperrors.NewUnauthorized("invalid sweep secret")
	}

	result, err := h.sweeper.Sweep(c.UserContext(), h.now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
