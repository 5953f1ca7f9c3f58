package middleware

import (
	"context"
	"strings"

	"toko/internal/apperr"
	"toko/internal/models"
	"toko/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// TokenAuthenticator validates bearer tokens and resolves the caller's identity.
type TokenAuthenticator interface {
	ValidateToken(tokenString string) (jwt.MapClaims, error)
	Lookup(ctx context.Context, userID string) (services.Identity, error)
}

func unauthorized(c *fiber.Ctx, message string, err error) error {
	body := fiber.Map{"message": message, "kind": "unauthenticated"}
	if err != nil {
		body["error"] = err.Error()
	}
	return c.Status(fiber.StatusUnauthorized).JSON(body)
}

// AuthRequired is a Fiber middleware to check for a valid JWT token. The role is read
// from the store on every request.
func AuthRequired(auth TokenAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required", nil)
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return unauthorized(c, "Authorization header format must be 'Bearer <token>'", nil)
		}

		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			return unauthorized(c, "Invalid or expired token", err)
		}

		userID, _ := claims["user_id"].(string)
		identity, err := auth.Lookup(c.UserContext(), userID)
		if err != nil {
			if apperr.Kind(err) == "unauthenticated" {
				return unauthorized(c, "Unknown user", err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not resolve identity",
				"kind":    apperr.Kind(err),
			})
		}

		c.Locals(identityKey, identity)
		c.Locals("user_id", identity.UserID)
		return c.Next()
	}
}

// AdminOnly rejects callers whose role is neither ADMIN nor MASTER. It must run after AuthRequired.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IdentityFrom(c).IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Admin access required",
				"kind":    "authorization",
			})
		}
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by AuthRequired, or an anonymous USER identity.
func IdentityFrom(c *fiber.Ctx) services.Identity {
	if id, ok := c.Locals(identityKey).(services.Identity); ok {
		return id
	}
	return services.Identity{Role: models.RoleUser}
}
