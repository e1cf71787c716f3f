package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"crisislens_server/pkg/response"
)

// =============================================================================
// Admin Auth Middleware
// =============================================================================

// RequireAdmin guards destructive endpoints with an HS256 bearer token.
// With an empty secret the guard is disabled, which keeps local development
// and tests free of token plumbing.
func RequireAdmin(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return response.Unauthorized(c, "missing bearer token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return response.Unauthorized(c, "invalid token")
		}

		return c.Next()
	}
}
