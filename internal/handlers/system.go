package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version is reported by /health.
const Version = "1.0.0"

// HealthChecker probes an external dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Health reports liveness. When a model sidecar is configured its status is
// included but never fails the check.
func Health(sidecar HealthChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := fiber.Map{
			"status":  "healthy",
			"version": Version,
		}
		if sidecar != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := sidecar.Health(ctx); err != nil {
				resp["sidecar"] = "unavailable: " + err.Error()
			} else {
				resp["sidecar"] = "ok"
			}
		}
		return c.JSON(resp)
	}
}

// LogSource returns recent log lines.
type LogSource interface {
	Lines() []string
}

// Logs returns the in-memory log buffer.
func Logs(src LogSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"logs": src.Lines()})
	}
}
