package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-vault/internal/config"
	"github.com/iliyamo/vendor-vault/internal/middleware"
	"github.com/iliyamo/vendor-vault/internal/model"
	"github.com/iliyamo/vendor-vault/internal/queue"
	"github.com/iliyamo/vendor-vault/internal/repository"
	"github.com/iliyamo/vendor-vault/internal/utils"
)

// dbTimeout bounds every store call made while serving a request.
const dbTimeout = 5 * time.Second

// UserStore is the slice of *repository.UserRepo the auth endpoints use.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

// TokenIssuer signs claims.  *utils.TokenManager satisfies it.
type TokenIssuer interface {
	Issue(c utils.Claims, ttl time.Duration) (utils.Token, error)
}

// EventPublisher hands a domain event to the broker.  *service.Publisher
// satisfies it; a nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, event any) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenIssuer
	Events EventPublisher
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenIssuer, ev EventPublisher) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Events: ev}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPart struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User         userPart `json:"user"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
}
type meResp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Register creates a user with role "user" and signs a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	var errs []fieldError
	if req.Name == "" {
		errs = append(errs, fieldError{Field: "name", Message: "name is required"})
	}
	if !validEmail(req.Email) {
		errs = append(errs, fieldError{Field: "email", Message: "please include a valid email"})
	}
	if msg := passwordProblem(req.Password); msg != "" {
		errs = append(errs, fieldError{Field: "password", Message: msg})
	}
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	// The unique index decides concurrent registrations of the same email.
	u, err := h.Users.Create(ctx, req.Name, req.Email, hash, model.RoleUser)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return badRequest(c, "user already exists")
		}
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}

	resp, err := h.issuePair(u)
	if err != nil {
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}
	h.publish(c, queue.EventUserRegistered, queue.UserRegisteredEvent{
		UserID:       u.ID,
		Email:        u.Email,
		Role:         u.Role,
		RegisteredAt: u.CreatedAt,
	})
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials.  An unknown email and a wrong password are
// indistinguishable to the caller, in body and in bcrypt work done.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	req.Email = strings.TrimSpace(req.Email)

	var errs []fieldError
	if !validEmail(req.Email) {
		errs = append(errs, fieldError{Field: "email", Message: "please include a valid email"})
	}
	if req.Password == "" {
		errs = append(errs, fieldError{Field: "password", Message: "password is required"})
	}
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			utils.BurnPasswordCheck(req.Password)
			return badRequest(c, "invalid credentials")
		}
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return badRequest(c, "invalid credentials")
	}

	resp, err := h.issuePair(u)
	if err != nil {
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Me returns the profile of the token holder.
func (h *AuthHandler) Me(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound(c, "user not found")
		}
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}
	return c.JSON(http.StatusOK, meResp{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	})
}

// Refresh reloads the user and issues a new access token carrying the
// current role.  The presented token is not revoked.
func (h *AuthHandler) Refresh(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound(c, "user not found")
		}
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}
	access, err := h.Tokens.Issue(identityClaims(u, utils.KindAccess), h.Cfg.AccessTTL)
	if err != nil {
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": access.Token})
}

func (h *AuthHandler) issuePair(u model.User) (authResp, error) {
	access, err := h.Tokens.Issue(identityClaims(u, utils.KindAccess), h.Cfg.AccessTTL)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := h.Tokens.Issue(identityClaims(u, utils.KindRefresh), h.Cfg.RefreshTTL)
	if err != nil {
		return authResp{}, err
	}
	return authResp{
		User:         userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role},
		Token:        access.Token,
		RefreshToken: refresh.Token,
	}, nil
}

func (h *AuthHandler) publish(c echo.Context, eventType string, event any) {
	publishEvent(c, h.Events, eventType, event)
}

func identityClaims(u model.User, kind string) utils.Claims {
	return utils.Claims{UserID: u.ID, Email: u.Email, Role: u.Role, Kind: kind}
}
