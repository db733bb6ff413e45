package reports

import (
	"encoding/json"
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

func newTestRouter(t *testing.T) (http.Handler, *memoryRepo) {
	t.Helper()
	cache, _ := newTestCache(t)
	svc, repo := newTestService(t, cache)
	h := NewHandler(slog.Default(), svc, rbac.Middleware{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if role := req.Header.Get("X-Test-Role"); role != "" {
				req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 4, Role: role}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api", h.MountRoutes)
	return r, repo
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

func TestGenerateAndExportOverHTTP(t *testing.T) {
	h, repo := newTestRouter(t)
	repo.seed("income", "credit", "2000.00", day(5, 3))
	repo.seed("expense", "debit", "500.00", day(5, 4))

	rec := do(t, h, http.MethodPost, "/api/reports", "manager",
		`{"report_type":"profit_loss","start_date":"2024-05-01","end_date":"2024-05-31","export_format":"csv"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Profit Loss", body.Label)
	require.Equal(t, "1500.00", body.Data["profit_loss"])
	require.Equal(t, int64(4), *body.RequestedBy)

	rec = do(t, h, http.MethodGet, "/api/reports/1/export", "accountant", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var exp Export
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exp))
	require.Equal(t, FormatCSV, exp.Format)
	require.Equal(t, "/api/reports/1/export/csv", exp.DownloadURL)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, exp.DownloadURL, "accountant", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/reports/1/export/pdf", "accountant", "").Code)

	rec = do(t, h, http.MethodGet, "/api/reports?report_type=profit_loss", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":1`)
}

func TestGenerateRejectsBadRange(t *testing.T) {
	h, repo := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/api/reports", "admin",
		`{"report_type":"income","start_date":"2024-05-31","end_date":"2024-05-01"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "start_date")
	require.Zero(t, repo.aggregates)
}

func TestReportRoutesEnforceRoles(t *testing.T) {
	h, _ := newTestRouter(t)
	require.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/reports", "", "").Code)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/api/reports", "customer", `{}`).Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/reports/99", "manager", "").Code)
}
