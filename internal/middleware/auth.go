package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kariyab/kariyab-backend/internal/apperrors"
	"github.com/kariyab/kariyab-backend/internal/models"
	"github.com/kariyab/kariyab-backend/internal/services"
)

// Fiber locals keys set by RequireAuth
const (
	LocalIdentity = "identity"
	LocalClaims   = "claims"
)

// RequireAuth gates protected endpoints: extract the bearer token, verify
// signature and expiry, load the identity, and reject stale password
// versions. On success the identity and claims are attached to the request.
func RequireAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return apperrors.Unauthorized("MISSING_TOKEN", "missing bearer token")
		}

		token := strings.TrimPrefix(header, "Bearer ")
		identity, claims, err := auth.AuthenticateAccessToken(token)
		if err != nil {
			return err
		}

		c.Locals(LocalIdentity, identity)
		c.Locals(LocalClaims, claims)
		return c.Next()
	}
}

// RequireRole gates endpoints that need a specific role tag. Must run
// after RequireAuth.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := IdentityFromCtx(c)
		if identity == nil {
			return apperrors.Unauthorized("MISSING_TOKEN", "missing bearer token")
		}
		if !identity.HasRole(role) {
			return &apperrors.Error{
				Kind:    apperrors.KindUnauthorized,
				Status:  fiber.StatusForbidden,
				Code:    "FORBIDDEN",
				Message: "insufficient role",
			}
		}
		return c.Next()
	}
}

// IdentityFromCtx returns the authenticated identity, or nil.
func IdentityFromCtx(c *fiber.Ctx) *models.Identity {
	identity, _ := c.Locals(LocalIdentity).(*models.Identity)
	return identity
}
