package middleware

import "github.com/labstack/echo/v4"

// userID returns the authenticated user id, or "anon" before JWTAuth ran
// or when the request carries no token.
func userID(c echo.Context) string {
	if claims, ok := ClaimsFrom(c); ok && claims.UserID != "" {
		return claims.UserID
	}
	if s, ok := c.Get(UserIDKey).(string); ok && s != "" {
		return s
	}
	return "anon"
}
