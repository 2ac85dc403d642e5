package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-vault/internal/middleware"
	"github.com/iliyamo/vendor-vault/internal/model"
	"github.com/iliyamo/vendor-vault/internal/utils"
)

type userFixture struct {
	e     *echo.Echo
	users *memUsers
	ann   model.User
	token string
	admin string
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	cfg := testConfig()
	tm := utils.NewTokenManager(cfg.JWTSecret)
	f := &userFixture{users: newMemUsers()}

	root, err := f.users.Create(t.Context(), "Root", "root@x.com", "hash", model.RoleAdmin)
	require.NoError(t, err)
	hash, err := utils.HashPassword("secret1", cfg.BcryptCost)
	require.NoError(t, err)
	f.ann, err = f.users.Create(t.Context(), "Ann", "ann@x.com", hash, model.RoleUser)
	require.NoError(t, err)

	f.token = issueFor(t, tm, f.ann, utils.KindAccess, time.Hour)
	f.admin = issueFor(t, tm, root, utils.KindAccess, time.Hour)

	h := NewUserHandler(cfg, f.users)
	f.e = newTestEcho(cfg)
	g := f.e.Group("/api/users", middleware.JWTAuth(tm, utils.KindAccess))
	g.PUT("/me", h.UpdateMe)
	admin := middleware.RequireRole(model.RoleAdmin)
	g.GET("", h.List, admin)
	g.GET("/:id", h.Get, admin)
	g.DELETE("/:id", h.Delete, admin)
	return f
}

func TestUserList(t *testing.T) {
	f := newUserFixture(t)

	rec := call(f.e, http.MethodGet, "/api/users?limit=1", "", f.token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorOf(t, rec))

	rec = call(f.e, http.MethodGet, "/api/users?limit=1", "", f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	body := decode(t, rec)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "ann@x.com", users[0].(map[string]any)["email"])
	assert.Equal(t, float64(2), body["pagination"].(map[string]any)["totalPages"])
}

func TestUserGetAndDelete(t *testing.T) {
	f := newUserFixture(t)

	rec := call(f.e, http.MethodGet, "/api/users/"+f.ann.ID, "", f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ann", decode(t, rec)["name"])

	rec = call(f.e, http.MethodDelete, "/api/users/"+f.ann.ID, "", f.admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(f.e, http.MethodGet, "/api/users/"+f.ann.ID, "", f.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user not found", errorOf(t, rec))

	// A deleted user's token still verifies but no longer resolves.
	rec = call(f.e, http.MethodPut, "/api/users/me", `{"name":"Ghost"}`, f.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateMe(t *testing.T) {
	f := newUserFixture(t)

	rec := call(f.e, http.MethodPut, "/api/users/me", `{"name":" Ann B ","password":"secret2"}`, f.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Ann B", decode(t, rec)["name"])

	stored, err := f.users.GetByID(t.Context(), f.ann.ID)
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(stored.PasswordHash, "secret2"))
	assert.False(t, utils.VerifyPassword(stored.PasswordHash, "secret1"))
	assert.True(t, stored.UpdatedAt.After(f.ann.UpdatedAt))
}

func TestUpdateMe_Validation(t *testing.T) {
	f := newUserFixture(t)

	for name, body := range map[string]string{
		"empty body":     `{}`,
		"blank name":     `{"name":"   "}`,
		"short password": `{"password":"12345"}`,
		"long password":  `{"password":"` + strings.Repeat("a", 80) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := call(f.e, http.MethodPut, "/api/users/me", body, f.token)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["errors"])
		})
	}
}

func TestUpdateMe_PasswordOverBcryptLimitKeepsOldHash(t *testing.T) {
	f := newUserFixture(t)

	rec := call(f.e, http.MethodPut, "/api/users/me", `{"password":"`+strings.Repeat("a", 80)+`"}`, f.token)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "password must be at most 72 bytes",
		decode(t, rec)["errors"].([]any)[0].(map[string]any)["message"])

	stored, err := f.users.GetByID(t.Context(), f.ann.ID)
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(stored.PasswordHash, "secret1"))
}
