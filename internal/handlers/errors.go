package handlers

import (
	"errors"
	"log/slog"

	"posts-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

var errorStatus = []struct {
	err  error
	code int
}{
	{services.ErrEmailExists, fiber.StatusConflict},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{services.ErrWrongPassword, fiber.StatusUnauthorized},
	{services.ErrInvalidToken, fiber.StatusUnauthorized},
	{services.ErrInvalidResetToken, fiber.StatusBadRequest},
	{services.ErrPasswordReused, fiber.StatusBadRequest},
	{services.ErrUserNotFound, fiber.StatusNotFound},
	{services.ErrPostNotFound, fiber.StatusNotFound},
}

type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	Trace   []string          `json:"trace,omitempty"`
}

// ErrorHandler is the single error boundary of the app. It logs the full
// error and answers with {status:"error", error:{message, errors?, trace?}};
// trace is omitted in production.
func ErrorHandler(logger *slog.Logger, production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, body := classify(err)
		if !production {
			body.Trace = errorChain(err)
		}

		level := slog.LevelWarn
		if code >= fiber.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Context(), level, "Request failed",
			"status", code,
			"message", body.Message,
			"error", err,
			"url", c.OriginalURL(),
			"method", c.Method(),
			"ip", c.IP())

		return c.Status(code).JSON(fiber.Map{
			"status": "error",
			"error":  body,
		})
	}
}

func classify(err error) (int, errorBody) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return fiber.StatusBadRequest, errorBody{Message: "validation error", Errors: verr.Errors}
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return ferr.Code, errorBody{Message: ferr.Message}
	}

	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.code, errorBody{Message: e.err.Error()}
		}
	}

	return fiber.StatusInternalServerError, errorBody{Message: "Internal Server Error"}
}

// errorChain lists the messages of err and everything it wraps, depth first.
// Errors joined with several %w verbs contribute each branch in order.
func errorChain(err error) []string {
	if err == nil {
		return nil
	}
	chain := []string{err.Error()}
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			chain = append(chain, errorChain(inner)...)
		}
	case interface{ Unwrap() error }:
		chain = append(chain, errorChain(e.Unwrap())...)
	}
	return chain
}

// NotFound answers every unmatched route.
func NotFound(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logger.Error("404 - Page not found - " + c.OriginalURL() + " - " + c.Method() + " - " + c.IP())
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status": "error",
			"error":  "resource not found",
		})
	}
}
