package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-vault/internal/config"
	"github.com/iliyamo/vendor-vault/internal/handler"
	"github.com/iliyamo/vendor-vault/internal/model"
	"github.com/iliyamo/vendor-vault/internal/repository"
	"github.com/iliyamo/vendor-vault/internal/utils"
)

// stubStore answers every lookup with "not found" and every list with
// nothing, enough to exercise the route table and its middleware.
type stubStore struct{}

func (stubStore) Create(context.Context, string, string, string, string) (model.User, error) {
	return model.User{}, repository.ErrEmailExists
}
func (stubStore) GetByEmail(context.Context, string) (model.User, error) {
	return model.User{}, repository.ErrUserNotFound
}
func (stubStore) GetByID(context.Context, string) (model.User, error) {
	return model.User{}, repository.ErrUserNotFound
}
func (stubStore) Update(context.Context, string, repository.UserUpdate) (model.User, error) {
	return model.User{}, repository.ErrUserNotFound
}
func (stubStore) Delete(context.Context, string) error { return repository.ErrUserNotFound }
func (stubStore) List(context.Context, int, int) ([]model.User, int64, error) {
	return nil, 0, nil
}

type stubVendors struct{}

func (stubVendors) Create(context.Context, *model.Vendor) error { return nil }
func (stubVendors) GetByID(context.Context, string) (*model.Vendor, error) {
	return nil, repository.ErrVendorNotFound
}
func (stubVendors) Update(context.Context, string, []repository.Assignment) (*model.Vendor, error) {
	return nil, repository.ErrVendorNotFound
}
func (stubVendors) Delete(context.Context, string) error { return repository.ErrVendorNotFound }
func (stubVendors) List(context.Context, repository.VendorFilter) ([]model.Vendor, int64, error) {
	return []model.Vendor{}, 0, nil
}
func (stubVendors) Metrics(context.Context) (model.VendorMetrics, error) {
	return model.VendorMetrics{}, nil
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func newTestServer(t *testing.T, db handler.Pinger) (*echo.Echo, *utils.TokenManager) {
	t.Helper()
	cfg := config.Config{Env: "test", JWTSecret: "router-test", AccessTTL: time.Minute, RefreshTTL: time.Hour, BcryptCost: 4}
	tm := utils.NewTokenManager(cfg.JWTSecret)

	e := NewServer(zerolog.Nop(), false)
	RegisterRoutes(e, db)
	RegisterAuth(e, handler.NewAuthHandler(cfg, stubStore{}, tm, nil), tm, config.RateLimitConfig{Enabled: true}, nil)
	RegisterVendors(e, handler.NewVendorHandler(cfg, stubVendors{}, nil), tm, config.CacheConfig{Enabled: true}, nil)
	RegisterUsers(e, handler.NewUserHandler(cfg, stubStore{}), tm)
	return e, tm
}

func token(t *testing.T, tm *utils.TokenManager, role, kind string) string {
	t.Helper()
	tok, err := tm.Issue(utils.Claims{UserID: "u-1", Email: "ann@x.com", Role: role, Kind: kind}, time.Minute)
	require.NoError(t, err)
	return tok.Token
}

func do(e *echo.Echo, method, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(""))
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t, pinger{})
	rec := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	e, _ = newTestServer(t, pinger{err: errors.New("down")})
	rec = do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouteGuards(t *testing.T) {
	e, tm := newTestServer(t, nil)
	user := token(t, tm, model.RoleUser, utils.KindAccess)
	admin := token(t, tm, model.RoleAdmin, utils.KindAccess)
	refresh := token(t, tm, model.RoleUser, utils.KindRefresh)

	cases := []struct {
		name, method, target, bearer string
		want                         int
	}{
		{"me without token", http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
		{"me with refresh token", http.MethodGet, "/api/auth/me", refresh, http.StatusUnauthorized},
		{"me for vanished user", http.MethodGet, "/api/auth/me", user, http.StatusNotFound},
		{"refresh with refresh token", http.MethodPost, "/api/auth/refresh", refresh, http.StatusNotFound},
		{"vendors without token", http.MethodGet, "/api/vendors", "", http.StatusUnauthorized},
		{"vendors with refresh token", http.MethodGet, "/api/vendors", refresh, http.StatusUnauthorized},
		{"vendors list", http.MethodGet, "/api/vendors", user, http.StatusOK},
		{"vendor metrics", http.MethodGet, "/api/vendors/metrics", user, http.StatusOK},
		{"vendor delete as user", http.MethodDelete, "/api/vendors/v-1", user, http.StatusForbidden},
		{"vendor delete as admin", http.MethodDelete, "/api/vendors/v-1", admin, http.StatusNotFound},
		{"users list as user", http.MethodGet, "/api/users", user, http.StatusForbidden},
		{"users list as admin", http.MethodGet, "/api/users", admin, http.StatusOK},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(e, tc.method, tc.target, tc.bearer)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			var body map[string]any
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		})
	}
}

func TestNilRedisDisablesMiddleware(t *testing.T) {
	assert.Nil(t, scripter(nil))
	assert.Nil(t, cmdable(nil))
}

func TestNewServerRecoversPanics(t *testing.T) {
	e := NewServer(zerolog.Nop(), false)
	e.GET("/panic", func(echo.Context) error { panic("boom") })

	rec := do(e, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"server error"}`, rec.Body.String())
}
