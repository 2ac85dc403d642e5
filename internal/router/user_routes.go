package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-vault/internal/handler"
	"github.com/iliyamo/vendor-vault/internal/middleware"
	"github.com/iliyamo/vendor-vault/internal/model"
	"github.com/iliyamo/vendor-vault/internal/utils"
)

// RegisterUsers mounts /api/users.  Any access token may edit its own
// profile; listing, lookup and deletion require the admin role.
func RegisterUsers(e *echo.Echo, h *handler.UserHandler, v middleware.TokenVerifier) {
	g := e.Group("/api/users", middleware.JWTAuth(v, utils.KindAccess))
	g.PUT("/me", h.UpdateMe)

	admin := middleware.RequireRole(model.RoleAdmin)
	g.GET("", h.List, admin)
	g.GET("/:id", h.Get, admin)
	g.DELETE("/:id", h.Delete, admin)
}
