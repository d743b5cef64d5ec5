// Package auth issues and verifies the signed tokens that carry a caller's
// identity, and exposes that identity to HTTP handlers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"canteen/internal/core"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var ErrInvalidToken = errors.New("token is invalid or expired")

// Claims are the custom JWT claims of both token types.
type Claims struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	IsStudent   bool      `json:"is_student"`
	IsManager   bool      `json:"is_manager"`
	IsSuperuser bool      `json:"is_superuser,omitempty"`
	TokenType   TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Identity returns the caller described by the claims.
func (c *Claims) Identity() core.Identity {
	return core.Identity{
		UserID:      c.UserID,
		Username:    c.Username,
		IsStudent:   c.IsStudent,
		IsManager:   c.IsManager,
		IsSuperuser: c.IsSuperuser,
	}
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// Issue returns a fresh access/refresh pair for the identity.
func (i *Issuer) Issue(id core.Identity) (TokenPair, error) {
	access, err := i.sign(id, AccessToken, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(id, RefreshToken, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh verifies a refresh token and returns a new access token for the
// identity it carries.
func (i *Issuer) Refresh(refresh string) (string, error) {
	claims, err := i.Verify(refresh, RefreshToken)
	if err != nil {
		return "", err
	}
	return i.sign(claims.Identity(), AccessToken, i.accessTTL)
}

// Verify parses the token and checks signature, expiry and type.
func (i *Issuer) Verify(token string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, want)
	}
	return claims, nil
}

func (i *Issuer) sign(id core.Identity, typ TokenType, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID:      id.UserID,
		Username:    id.Username,
		IsStudent:   id.IsStudent,
		IsManager:   id.IsManager,
		IsSuperuser: id.IsSuperuser,
		TokenType:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(id.UserID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}
