package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/karobar-pk/karobar/internal/auth"
	"github.com/karobar-pk/karobar/internal/config"
)

// BearerAuth validates HS256 access tokens and exposes the caller's identity
// via locals.
func BearerAuth(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := auth.ParseAndVerifyHS256(tokenStr, []byte(cfg.JWTSecret))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		exp, ok := claims["exp"].(float64)
		if !ok || time.Now().Unix() > int64(exp) {
			return fiber.NewError(http.StatusUnauthorized, "token expired")
		}

		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if sub == "" {
			return fiber.NewError(http.StatusUnauthorized, "invalid token subject")
		}

		c.Locals("user_id", sub)
		c.Locals("role", role)
		return c.Next()
	}
}

// RequireRole rejects callers whose token carries a different role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if got, _ := c.Locals("role").(string); got != role {
			return fiber.NewError(http.StatusForbidden, "insufficient privileges")
		}
		return c.Next()
	}
}
