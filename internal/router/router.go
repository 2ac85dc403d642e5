// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/vendor-vault/internal/config"
	"github.com/iliyamo/vendor-vault/internal/handler"
	"github.com/iliyamo/vendor-vault/internal/middleware"
	"github.com/iliyamo/vendor-vault/internal/utils"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/health", handler.Health(db))
}

// RegisterAuth mounts /api/auth.  Register and login are throttled per
// client; me requires an access token; refresh accepts either kind.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, v middleware.TokenVerifier, rl config.RateLimitConfig, rdb *redis.Client) {
	limit := middleware.NewTokenBucket(rl, scripter(rdb))

	g := e.Group("/api/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.GET("/me", a.Me, middleware.JWTAuth(v, utils.KindAccess))
	g.POST("/refresh", a.Refresh, middleware.JWTAuth(v, utils.KindAccess, utils.KindRefresh))
}

// The middleware constructors treat a nil interface as "disabled"; a nil
// *redis.Client must not reach them wrapped in a non-nil interface.
func scripter(rdb *redis.Client) redis.Scripter {
	if rdb == nil {
		return nil
	}
	return rdb
}

func cmdable(rdb *redis.Client) redis.Cmdable {
	if rdb == nil {
		return nil
	}
	return rdb
}

// NewServer builds an echo instance with the shared middleware chain:
// request ids, access logging, panic recovery and the JSON error renderer.
// Recover sits inside the logger so a panic is logged with its 500.
func NewServer(log zerolog.Logger, dev bool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(dev)

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("1M"))
	return e
}
