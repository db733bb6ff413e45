// Package auth verifies bearer tokens issued by the identity provider.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/ams/internal/rbac"
	"github.com/odyssey-erp/ams/internal/shared"
)

var (
	// ErrInvalidToken covers malformed, tampered or wrongly signed tokens.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", shared.ErrUnauthorized)
	// ErrExpiredToken is returned for tokens past their expiry.
	ErrExpiredToken = fmt.Errorf("%w: token has expired", shared.ErrUnauthorized)
	// ErrInvalidClaims is returned when user_id or role is missing or unknown.
	ErrInvalidClaims = fmt.Errorf("%w: invalid token claims", shared.ErrUnauthorized)
)

// Claims carried by AMS bearer tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// TokenService signs and verifies HS256 tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// WithNow overrides the clock used for issuing and verifying.
func (s *TokenService) WithNow(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue mints a token for the given user and role.
func (s *TokenService) Issue(userID int64, role rbac.Role) (string, time.Time, error) {
	if userID <= 0 {
		return "", time.Time{}, shared.Invalid("user_id", "must be positive")
	}
	if _, ok := rbac.ParseRole(string(role)); !ok {
		return "", time.Time{}, shared.Invalid("role", "unknown role %q", role)
	}
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   fmt.Sprint(userID),
			ExpiresAt: jwt.NewNumericDate(expires),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
		Role:   string(role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses raw and returns the principal it carries.
func (s *TokenService) Verify(raw string) (shared.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return shared.Principal{}, ErrExpiredToken
		}
		return shared.Principal{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return shared.Principal{}, ErrInvalidClaims
	}
	role, ok := rbac.ParseRole(claims.Role)
	if !ok || claims.UserID <= 0 {
		return shared.Principal{}, ErrInvalidClaims
	}
	return shared.Principal{UserID: claims.UserID, Role: string(role)}, nil
}
