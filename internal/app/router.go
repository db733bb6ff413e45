package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ams/internal/audit"
	"github.com/odyssey-erp/ams/internal/auth"
	"github.com/odyssey-erp/ams/internal/billing"
	"github.com/odyssey-erp/ams/internal/ledger"
	"github.com/odyssey-erp/ams/internal/notifications"
	"github.com/odyssey-erp/ams/internal/observability"
	"github.com/odyssey-erp/ams/internal/rbac"
	"github.com/odyssey-erp/ams/internal/reports"
	"github.com/odyssey-erp/ams/internal/transactions"
	"github.com/odyssey-erp/ams/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Verifier auth.Verifier
	RBAC     rbac.Middleware
	Metrics  *observability.Metrics

	LedgerHandler        *ledger.Handler
	BillingHandler       *billing.Handler
	TransactionsHandler  *transactions.Handler
	ReportsHandler       *reports.Handler
	AuditHandler         *audit.Handler
	NotificationsHandler *notifications.Handler
	JobHandler           *jobs.Handler
}

// NewRouter constructs the chi.Router with AMS defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(params.Verifier, params.Logger))

		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.BillingHandler != nil {
			params.BillingHandler.MountRoutes(r)
		}
		if params.TransactionsHandler != nil {
			params.TransactionsHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		if params.NotificationsHandler != nil {
			params.NotificationsHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.RBAC.Require(rbac.ActionOperateJobs))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
