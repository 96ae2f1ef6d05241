package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/querynotes/querynotes-api/internal/core/domain"
	"github.com/querynotes/querynotes-api/internal/core/ports"
)

// identityKey is the echo context key holding the verified *domain.Identity.
const identityKey = "identity"

// Auth verifies the bearer token and binds the caller identity to the
// request. It does no per-resource authorisation; ownership is enforced by
// the query service.
func Auth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			identity, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity bound by Auth, if any.
func IdentityFrom(c echo.Context) (*domain.Identity, bool) {
	id, ok := c.Get(identityKey).(*domain.Identity)
	return id, ok && id != nil && id.UserID != ""
}

// WithIdentity binds identity to c the way Auth does. Used by tests.
func WithIdentity(c echo.Context, identity *domain.Identity) {
	c.Set(identityKey, identity)
}
