package identity

import (
	"net/http"

	"plantain-trace/internal/core/authz"

	"github.com/gofiber/fiber/v2"
)

const actorLocalKey = "actor"

// Actor is the resolved identity attached to each request. Authentication
// happens upstream; the core only trusts the resolved (userID, role) pair.
type Actor struct {
	// UserID is the unique identifier of the acting user.
	UserID string
	// Role is the custodial role the user holds.
	Role authz.Role
}

// Middleware resolves the actor from the X-Actor-ID and X-Actor-Role headers
// set by the upstream identity provider. Requests without a valid pair are
// rejected before reaching any handler.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-Actor-ID")
		if userID == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"message": "Missing X-Actor-ID header",
			})
		}

		role, err := authz.ParseRole(c.Get("X-Actor-Role"))
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"message": "Missing or invalid X-Actor-Role header",
			})
		}

		c.Locals(actorLocalKey, Actor{UserID: userID, Role: role})
		return c.Next()
	}
}

// FromCtx returns the actor resolved by Middleware for this request.
func FromCtx(c *fiber.Ctx) (Actor, bool) {
	actor, ok := c.Locals(actorLocalKey).(Actor)
	return actor, ok
}
