package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/accounts/ledgers/{id}")

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/ledgers/3", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `ams_http_requests_total{code="418",route="/api/accounts/ledgers/{id}"} 1`)
	require.Contains(t, body, `ams_http_request_duration_seconds_bucket{route="/api/accounts/ledgers/{id}"`)
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.EntryPosted("debit", "create")
	metrics.EntryPosted("debit", "create")
	metrics.PaymentRecorded("invoice", "paid")
	metrics.ObserveRecalculation(3*time.Millisecond, nil)
	metrics.ObserveRecalculation(time.Millisecond, errors.New("boom"))
	metrics.ReportGenerated("profit_loss")
	metrics.CacheLookup(true)
	metrics.CacheLookup(false)

	body := scrape(t, metrics)
	require.Contains(t, body, `ams_ledger_entries_total{op="create",type="debit"} 2`)
	require.Contains(t, body, `ams_payments_recorded_total{status="paid",target="invoice"} 1`)
	require.Contains(t, body, `ams_balance_recalculation_duration_seconds_count 2`)
	require.Contains(t, body, `ams_balance_recalculation_failures_total 1`)
	require.Contains(t, body, `ams_reports_generated_total{type="profit_loss"} 1`)
	require.True(t, strings.Contains(body, `ams_report_cache_lookups_total{result="hit"} 1`))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.EntryPosted("credit", "delete")
	m.CacheLookup(true)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
