package middleware

import (
	"strings"

	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

const callerKey = "caller"

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := authService.ValidateToken(parts[1])
		if err == nil {
			var caller services.Caller
			if caller, err = services.CallerFromClaims(claims); err == nil {
				c.Locals("user_id", caller.UserID)
				c.Locals("role", string(caller.Role))
				c.Locals("username", claims["username"])
				c.Locals(callerKey, caller)
				return c.Next()
			}
		}

		log.WithField("component", "auth").WithError(err).Debug("JWT validation failed")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid or expired token",
			"error":   err.Error(),
		})
	}
}

// AdminOnly rejects callers without the ADMIN role. It must run after AuthRequired.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CallerFrom(c).Role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Administrator access required",
			})
		}
		return c.Next()
	}
}

// CallerFrom returns the caller stored by AuthRequired, or the zero Caller.
func CallerFrom(c *fiber.Ctx) services.Caller {
	caller, _ := c.Locals(callerKey).(services.Caller)
	return caller
}
