package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/observability"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the probes and the metrics snapshot.
type HealthHandler struct {
	serviceName string
	version     string
	startedAt   time.Time
	deps        map[string]Pinger
	metrics     *observability.Metrics
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, deps map[string]Pinger, metrics *observability.Metrics) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		startedAt:   time.Now(),
		deps:        deps,
		metrics:     metrics,
	}
}

// Live never touches dependencies.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

type depResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// Ready pings every dependency concurrently under one deadline.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]depResult, len(h.deps))
		ready   = true
	)
	for name, dep := range h.deps {
		wg.Add(1)
		go func(name string, dep Pinger) {
			defer wg.Done()
			start := time.Now()
			err := dep.Ping(ctx)
			res := depResult{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "down"
				res.Error = err.Error()
			}
			mu.Lock()
			results[name] = res
			if err != nil {
				ready = false
			}
			mu.Unlock()
		}(name, dep)
	}
	wg.Wait()

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": results,
		})
	}
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": results,
		},
	})
}

// Metrics serves the in-memory counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
