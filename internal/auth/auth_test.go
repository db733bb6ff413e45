package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ams/internal/rbac"
	"github.com/odyssey-erp/ams/internal/shared"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewTokenService("secret", "ams", time.Hour).WithNow(fixedClock(now))

	raw, exp, err := svc.Issue(42, rbac.RoleAccountant)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), exp)

	p, err := svc.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, shared.Principal{UserID: 42, Role: "accountant"}, p)
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := NewTokenService("secret", "ams", time.Minute).WithNow(fixedClock(now))
	raw, _, err := issuer.Issue(7, rbac.RoleManager)
	require.NoError(t, err)

	later := NewTokenService("secret", "ams", time.Minute).WithNow(fixedClock(now.Add(2 * time.Minute)))
	_, err = later.Verify(raw)
	require.ErrorIs(t, err, ErrExpiredToken)
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	other := NewTokenService("other-secret", "ams", time.Minute).WithNow(fixedClock(now))
	_, err = other.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		UserID:           1,
		Role:             "root",
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenService("secret", "", time.Hour).Verify(raw)
	require.True(t, errors.Is(err, ErrInvalidClaims))
}

func TestIssueValidatesInput(t *testing.T) {
	svc := NewTokenService("secret", "ams", time.Hour)
	_, _, err := svc.Issue(0, rbac.RoleAdmin)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, _, err = svc.Issue(1, rbac.Role("root"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMiddleware(t *testing.T) {
	svc := NewTokenService("secret", "ams", time.Hour)
	raw, _, err := svc.Issue(9, rbac.RoleCustomer)
	require.NoError(t, err)

	var seen shared.Principal
	h := Middleware(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(9), seen.UserID)
	require.Equal(t, "customer", seen.Role)

	req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
