package main

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"claimflow/auth"
	"claimflow/claim"
	"claimflow/document"
	"claimflow/lecturer"
)

// statusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, claim.ErrNotFound),
		errors.Is(err, document.ErrNotFound),
		errors.Is(err, document.ErrClaimNotFound),
		errors.Is(err, document.ErrObjectNotFound),
		errors.Is(err, lecturer.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, claim.ErrInvalidTransition):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, claim.ErrConflict),
		errors.Is(err, auth.ErrDuplicateEmail):
		return fiber.StatusConflict
	case errors.Is(err, document.ErrTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, claim.ErrInvalidInput),
		errors.Is(err, document.ErrEmptyFile),
		errors.Is(err, document.ErrTypeNotAllowed),
		errors.Is(err, document.ErrDescription),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidUser),
		errors.Is(err, lecturer.ErrInvalidUpdate):
		return fiber.StatusBadRequest
	case errors.Is(err, document.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInactiveUser),
		errors.Is(err, auth.ErrInvalidToken):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) writeError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		s.log().Error("request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}

	body := fiber.Map{"error": err.Error()}
	var te *claim.TransitionError
	if errors.As(err, &te) {
		body["from"] = te.From
		body["to"] = te.To
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// handleFiberError renders errors returned by fiber itself, such as 404 for
// unknown routes or 413 for oversized bodies.
func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return s.writeError(c, err)
}
