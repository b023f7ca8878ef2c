package main

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"claimflow/auth"
)

const localsIdentity = "identity"

// authMiddleware validates the bearer token and stores the identity in locals.
func (s *Server) authMiddleware(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
	}

	identity, err := s.authService.VerifyToken(strings.TrimSpace(token))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}

	c.Locals(localsIdentity, identity)
	return c.Next()
}

// requireRole lets the request through when the caller has one of roles.
func requireRole(roles ...auth.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := identityFrom(c)
		if ok {
			for _, role := range roles {
				if identity.Role == role {
					return c.Next()
				}
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient permissions"})
	}
}

func identityFrom(c *fiber.Ctx) (auth.Identity, bool) {
	identity, ok := c.Locals(localsIdentity).(auth.Identity)
	return identity, ok
}
