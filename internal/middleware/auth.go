// Package middleware contains HTTP middleware functions for the Agon API.
// Middleware sits between the HTTP server and route handlers — it runs on every
// request that passes through it, making it the right place for cross-cutting
// concerns like authentication.
package middleware

import (
	"strings"

	// fiber is the HTTP framework; fiber.Handler is the function signature for middleware
	"github.com/gofiber/fiber/v2"
	// jwt parses and verifies JSON Web Tokens from the Authorization header
	"github.com/golang-jwt/jwt/v5"

	"github.com/agon-app/agon/internal/config"
)

// UserIDKey is the Locals key under which Auth stores the authenticated
// user's id (the token's subject claim). Handlers read it back with
// c.Locals(middleware.UserIDKey).
const UserIDKey = "userID"

// Claims defines the data we expect inside the identity provider's JWT payload.
// Only the standard registered claims matter here: Subject carries the durable
// user identifier that keys the users table.
type Claims struct {
	jwt.RegisteredClaims
}

// Auth returns a Fiber middleware handler that:
//  1. Validates the JWT from the "Authorization: Bearer <token>" header,
//     checking the HS256 signature against the shared secret
//  2. Stores the token's subject in the request context (c.Locals) so
//     downstream handlers can read it without re-parsing the token
//
// Note that Auth deliberately does NOT create or look up a user row. Identity
// resolution is an explicit step: a brand-new user is authenticated (their
// token is valid) but has no profile until they call POST /users, and
// endpoints that need a profile respond 404 until then. Keeping the lookup
// out of the middleware makes that distinction auditable — a 401 always means
// "bad token", never "missing profile".
func Auth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid authorization header",
			})
		}

		// Strip the "Bearer " prefix to get just the raw JWT string
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			// The keyfunc must confirm the signing method before handing back
			// the key — otherwise a token signed with "none" or an RSA public
			// key could slip through.
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		// claims.Subject is the standard JWT "sub" field — the identity
		// provider sets it to its durable user id
		if claims.Subject == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "token missing subject",
			})
		}

		// c.Locals is a key-value store scoped to this single request.
		c.Locals(UserIDKey, claims.Subject)

		// Pass control to the next middleware or route handler
		return c.Next()
	}
}
