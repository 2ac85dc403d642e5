package utils // package utils provides helpers for token creation and password hashing

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the "typ" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
)

// Claims is the identity embedded in every issued token.  Only id, email and
// role describe the user; everything else is token bookkeeping.
//
// Kind is serialized as "typ" and tells access tokens from refresh tokens.
// The registered claims carry sub (equal to UserID), iat and exp; Issue
// fills them and callers leave them zero.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Kind   string `json:"typ"`
	jwt.RegisteredClaims
}

// Token is a signed JWT along with its expiry.
type Token struct {
	Token string
	Exp   time.Time
}

// TokenManager signs and verifies HS256 tokens with a server-held secret.
// It carries no mutable state and is safe for concurrent use.
//
// The clock is injectable through WithClock; both Issue and Verify read
// it, so expiry tests need no sleeping.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager builds a manager around secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy that reads time from now.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	return &TokenManager{secret: m.secret, now: now}
}

// Issue signs claims with exp = now + ttl.  Subject mirrors the user id.
// An empty Kind is issued as KindAccess.  Any registered claims already on
// c are replaced.
func (m *TokenManager) Issue(c Claims, ttl time.Duration) (Token, error) {
	if c.Kind == "" {
		c.Kind = KindAccess
	}
	now := m.now().UTC()
	exp := now.Add(ttl)
	c.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   c.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Token: signed, Exp: exp}, nil
}

// Verify checks signature and expiry and returns the embedded claims.  The
// error is always one of ErrMalformedToken, ErrInvalidSignature or
// ErrTokenExpired.
//
// Only HS256 is accepted; a token signed with any other algorithm,
// including "none", is ErrInvalidSignature.  A token without exp or
// without a user id is ErrMalformedToken.  Expiry is checked only after
// the signature holds.
func (m *TokenManager) Verify(raw string) (*Claims, error) {
	if err := m.checkMAC(raw); err != nil {
		return nil, err
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, ErrInvalidSignature
	default:
		// missing exp and other claim problems
		return nil, ErrMalformedToken
	}
	if claims.UserID == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// checkMAC authenticates header.payload before anything in the payload is
// decoded, so any change to the payload reports ErrInvalidSignature rather
// than whatever the altered JSON happens to break.  Only a token whose
// outer shape is unreadable is ErrMalformedToken.
func (m *TokenManager) checkMAC(raw string) error {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return ErrMalformedToken
	}
	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || !json.Valid(header) {
		return ErrMalformedToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return ErrMalformedToken
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, m.secret); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
