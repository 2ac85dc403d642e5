package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/vendor-vault/internal/config"
	"github.com/iliyamo/vendor-vault/internal/handler"
	"github.com/iliyamo/vendor-vault/internal/middleware"
	"github.com/iliyamo/vendor-vault/internal/model"
	"github.com/iliyamo/vendor-vault/internal/utils"
)

// RegisterVendors mounts /api/vendors.  Every route needs an access token;
// reads are served through the redis response cache and deletion is
// admin-only.  Cached reads expire by TTL, writes do not evict them.
func RegisterVendors(e *echo.Echo, h *handler.VendorHandler, v middleware.TokenVerifier, cc config.CacheConfig, rdb *redis.Client) {
	g := e.Group("/api/vendors", middleware.JWTAuth(v, utils.KindAccess))
	cache := middleware.NewRedisCache(cc, cmdable(rdb))

	g.GET("", h.List, cache)
	g.GET("/metrics", h.Metrics, cache)
	g.GET("/:id", h.Get, cache)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete, middleware.RequireRole(model.RoleAdmin))
}
