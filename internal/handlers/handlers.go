package handlers

import (
	"log/slog"

	"posts-backend/internal/queue"
	"posts-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Services bundles what the HTTP handlers depend on.
type Services struct {
	Users     *services.UserService
	Tokens    *services.TokenService
	Blacklist *services.BlacklistService
	Posts     *services.PostService
	Tasks     queue.Publisher
	Logger    *slog.Logger
}

func IndexHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Welcome to posts-ish",
	})
}

func HealthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// publish hands a task to the dispatcher. Failures are logged only; side
// effects never fail the request.
func (s *Services) publish(c *fiber.Ctx, topic queue.Topic, payload any) {
	if err := s.Tasks.Publish(c.Context(), topic, payload); err != nil {
		s.Logger.Error("Failed to queue task", "topic", topic, "error", err)
	}
}
