package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-vault/internal/config"
	"github.com/iliyamo/vendor-vault/internal/middleware"
	"github.com/iliyamo/vendor-vault/internal/model"
	"github.com/iliyamo/vendor-vault/internal/repository"
	"github.com/iliyamo/vendor-vault/internal/utils"
)

// UserAdminStore is the slice of *repository.UserRepo behind /api/users.
type UserAdminStore interface {
	GetByID(ctx context.Context, id string) (model.User, error)
	Update(ctx context.Context, id string, upd repository.UserUpdate) (model.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, limit int) ([]model.User, int64, error)
}

// UserHandler serves /api/users.
type UserHandler struct {
	Cfg   config.Config
	Users UserAdminStore
}

func NewUserHandler(cfg config.Config, u UserAdminStore) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: u}
}

type updateMeReq struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

// List handles GET /api/users (admin).
func (h *UserHandler) List(c echo.Context) error {
	page, limit := pageParams(c.QueryParam("page"), c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	users, total, err := h.Users.List(ctx, page, limit)
	if err != nil {
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}
	out := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users":      out,
		"pagination": model.NewPagination(page, limit, total),
	})
}

// Get handles GET /api/users/:id (admin).
func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, c.Param("id"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, u.Public())
}

// Delete handles DELETE /api/users/:id (admin).  Tokens already issued to
// the removed user keep verifying until they expire.
func (h *UserHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.Delete(ctx, c.Param("id")); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user removed"})
}

// UpdateMe handles PUT /api/users/me.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	var req updateMeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}

	var errs []fieldError
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		errs = append(errs, fieldError{Field: "name", Message: "name cannot be empty"})
	}
	if req.Password != nil {
		if msg := passwordProblem(*req.Password); msg != "" {
			errs = append(errs, fieldError{Field: "password", Message: msg})
		}
	}
	if req.Name == nil && req.Password == nil {
		errs = append(errs, fieldError{Field: "name", Message: "nothing to update"})
	}
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	upd := repository.UserUpdate{Name: req.Name}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password, h.Cfg.BcryptCost)
		if err != nil {
			return serverError(c, h.Cfg.IsDevelopment(), err)
		}
		upd.PasswordHash = &hash
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Update(ctx, claims.UserID, upd)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, u.Public())
}

func (h *UserHandler) storeError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return notFound(c, "user not found")
	}
	return serverError(c, h.Cfg.IsDevelopment(), err)
}
