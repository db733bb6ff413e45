package transactions

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ams/internal/rbac"
	"github.com/odyssey-erp/ams/internal/shared"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, _ := newTestService(t)
	h := NewHandler(slog.Default(), svc, rbac.Middleware{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if role := req.Header.Get("X-Test-Role"); role != "" {
				req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 2, Role: role}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api", h.MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTransactionApprovalOverHTTP(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/api/transactions", "accountant", fmt.Sprintf(
		`{"ledger":%d,"transaction_type":"outgoing","payment_method":"cash","amount":"75.25","transaction_date":"2024-05-02"}`, testLedger))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "pending", body["status"])
	require.Equal(t, "75.25", body["amount"])
	require.Equal(t, "2024-05-02", body["transaction_date"])
	path := fmt.Sprintf("/api/transactions/%d", int64(body["id"].(float64)))

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, path+"/approve", "accountant", "").Code)

	rec = do(t, h, http.MethodPost, path+"/approve", "manager", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"approved"`)

	require.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, path+"/reject", "admin", "").Code)

	rec = do(t, h, http.MethodGet, "/api/transactions?status=approved", "manager", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":1`)
}

func TestTransactionRoutesEnforceRoles(t *testing.T) {
	h := newTestRouter(t)
	require.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/transactions", "", "").Code)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/api/transactions", "customer", "").Code)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/api/transactions", "manager", `{}`).Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/transactions", "admin",
		`{"ledger":1,"transaction_type":"sideways","payment_method":"cash","amount":"1"}`).Code)
}
