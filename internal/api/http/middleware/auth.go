package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	pasetotoken "github.com/Alijeyrad/simorq_settlement/pkg/paseto"
	"github.com/Alijeyrad/simorq_settlement/pkg/reqctx"
)

const LocalClaims = "service_claims"

// TokenVerifier is the subset of the PASETO manager the middleware needs.
type TokenVerifier interface {
	Verify(token string) (*pasetotoken.Claims, error)
}

// ServiceAuth validates a Bearer PASETO service token. On success the claims
// are stored in locals and as the request context's caller.
func ServiceAuth(v TokenVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" {
			return fiber.ErrUnauthorized
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.ErrUnauthorized
		}

		claims, err := v.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals(LocalClaims, claims)
		c.SetContext(reqctx.WithCaller(c.Context(), claims))
		return c.Next()
	}
}

// RequireScope rejects callers whose token lacks scope.
func RequireScope(scope string) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := ClaimsFromFiber(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		if !claims.HasScope(scope) {
			return fiber.ErrForbidden
		}
		return c.Next()
	}
}

func ClaimsFromFiber(c fiber.Ctx) (*pasetotoken.Claims, bool) {
	claims, ok := c.Locals(LocalClaims).(*pasetotoken.Claims)
	return claims, ok && claims != nil
}
