package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-vault/internal/config"
	"github.com/iliyamo/vendor-vault/internal/model"
	"github.com/iliyamo/vendor-vault/internal/repository"
	"github.com/iliyamo/vendor-vault/internal/utils"
)

const testSecret = "handler-test-secret"

func testConfig() config.Config {
	return config.Config{
		Env:        "test",
		JWTSecret:  testSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		BcryptCost: 4,
	}
}

// memUsers is an in-memory UserStore/UserAdminStore with the same
// uniqueness and not-found semantics as repository.UserRepo.
type memUsers struct {
	mu   sync.Mutex
	rows map[string]model.User
	seq  int
	err  error
}

func newMemUsers() *memUsers { return &memUsers{rows: map[string]model.User{}} }

func (m *memUsers) Create(_ context.Context, name, email, passwordHash, role string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	email = repository.NormalizeEmail(email)
	for _, u := range m.rows {
		if u.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	m.seq++
	now := time.Date(2024, 1, 1, 0, 0, m.seq, 0, time.UTC)
	u := model.User{
		ID: fmt.Sprintf("user-%d", m.seq), Name: name, Email: email,
		PasswordHash: passwordHash, Role: role, CreatedAt: now, UpdatedAt: now,
	}
	m.rows[u.ID] = u
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	email = repository.NormalizeEmail(email)
	for _, u := range m.rows {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	u, ok := m.rows[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) Update(_ context.Context, id string, upd repository.UserUpdate) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	u.UpdatedAt = u.UpdatedAt.Add(time.Hour)
	m.rows[id] = u
	return u, nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memUsers) List(_ context.Context, page, limit int) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	all := make([]model.User, 0, len(m.rows))
	for _, u := range m.rows {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := min(start+limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (m *memUsers) setRole(id, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.rows[id]
	u.Role = role
	m.rows[id] = u
}

type published struct {
	Type  string
	Event any
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, eventType string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{Type: eventType, Event: event})
	return nil
}

var errStoreDown = errors.New("store down")

// call performs a request against e and returns the recorder.
func call(e *echo.Echo, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	s, _ := decode(t, rec)["error"].(string)
	return s
}

func issueFor(t *testing.T, tm *utils.TokenManager, u model.User, kind string, ttl time.Duration) string {
	t.Helper()
	tok, err := tm.Issue(utils.Claims{UserID: u.ID, Email: u.Email, Role: u.Role, Kind: kind}, ttl)
	require.NoError(t, err)
	return tok.Token
}

func newTestEcho(cfg config.Config) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(cfg.IsDevelopment())
	return e
}

