package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/realtime"
)

// StreamHandler serves the realtime push stream as server-sent events.
type StreamHandler struct {
	gateway *realtime.Gateway
	logger  *zap.Logger
}

// NewStreamHandler constructs handler.
func NewStreamHandler(gateway *realtime.Gateway, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{gateway: gateway, logger: logger}
}

// Stream GET /events/stream. Admission happens before the response starts
// so a refused connection still gets a JSON error.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	conn, err := h.gateway.Connect(principal)
	if errors.Is(err, realtime.ErrGatewayClosed) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "server is shutting down")
	}
	if err != nil {
		return err
	}

	streamID := uuid.NewString()
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
	c.Set("X-Stream-Id", streamID)

	logger := h.logger.With(zap.String("stream_id", streamID), zap.String("user_id", principal.UserID))
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		logger.Debug("stream opened")
		sink := realtime.SinkFunc(func(msg []byte) error {
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				return err
			}
			return w.Flush()
		})
		// ends on write failure, slow-consumer drop or gateway shutdown
		if err := h.gateway.Stream(context.Background(), conn, sink); err != nil {
			logger.Debug("stream closed by client", zap.Error(err))
			return
		}
		logger.Debug("stream closed")
	})
	return nil
}
