package middleware // middleware contains reusable HTTP middleware functions

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-vault/internal/utils"
)

// Context keys written by JWTAuth.
const (
	ClaimsKey = "claims"
	UserIDKey = "user_id"
	RoleKey   = "role"
)

// TokenVerifier validates a raw bearer token and returns its claims.
// *utils.TokenManager satisfies it; tests substitute a manager with a
// pinned clock.  Verify must report failures as utils.ErrMalformedToken,
// utils.ErrInvalidSignature or utils.ErrTokenExpired so JWTAuth can turn
// them into the matching 401 message.
type TokenVerifier interface {
	Verify(raw string) (*utils.Claims, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer token and
// injects its claims into the request context.
//
// The Authorization header must read "Bearer <token>"; the scheme is
// matched case-insensitively and surrounding whitespace is trimmed.  On
// success the claims are stored under ClaimsKey and the user id and role
// under UserIDKey and RoleKey, which RequireRole and the handlers read.
//
// When kinds is non-empty the token's "typ" claim must be one of them, so
// a refresh token cannot stand in for an access token.  Every rejection is
// a 401 JSON body of the form {"error": "..."} and the wrapped handler is
// never called.
func JWTAuth(v TokenVerifier, kinds ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			claims, err := v.Verify(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": verifyMessage(err)})
			}
			if len(allowed) > 0 && !allowed[claims.Kind] {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token type"})
			}

			c.Set(ClaimsKey, claims)
			c.Set(UserIDKey, claims.UserID)
			c.Set(RoleKey, claims.Role)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by JWTAuth.  The boolean is false on
// routes that are not behind JWTAuth.
func ClaimsFrom(c echo.Context) (*utils.Claims, bool) {
	claims, ok := c.Get(ClaimsKey).(*utils.Claims)
	return claims, ok && claims != nil
}

func bearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func verifyMessage(err error) string {
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return utils.ErrTokenExpired.Error()
	case errors.Is(err, utils.ErrInvalidSignature):
		return utils.ErrInvalidSignature.Error()
	default:
		return utils.ErrMalformedToken.Error()
	}
}
