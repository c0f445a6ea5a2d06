package handlers

import (
	"os"

	"github.com/gofiber/fiber/v2"
)

func fail(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}

func removeQuietly(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}
