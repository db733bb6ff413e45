package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/ams/internal/platform/httpx"
	"github.com/odyssey-erp/ams/internal/rbac"
	"github.com/odyssey-erp/ams/internal/shared"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
	maxRangeDays     = 90
)

// TimelineService is the contract the handler depends on.
type TimelineService interface {
	Timeline(ctx context.Context, f TimelineFilters) (Result, error)
	ExportCSV(ctx context.Context, f TimelineFilters) ([]byte, error)
}

// Handler exposes the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service TimelineService, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers audit routes under the API root.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(exportRateLimit, exportRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "export rate limit exceeded")
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionRead))
		r.Get("/audit-logs", h.timeline)
		r.With(limiter).Get("/audit-logs/export.csv", h.export)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if p, ok := shared.PrincipalFromContext(r.Context()); ok && p.UserID > 0 {
		return "user:" + strconv.FormatInt(p.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

type timelineResponse struct {
	Count   int        `json:"count"`
	Results []Entry    `json:"results"`
	Paging  PagingInfo `json:"paging"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Timeline(r.Context(), f)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	rows := res.Rows
	if rows == nil {
		rows = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{Count: len(rows), Results: rows, Paging: res.Paging})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	body, err := h.service.ExportCSV(r.Context(), f)
	if err != nil {
		h.logger.Error("export audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-logs.csv"`)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		return TimelineFilters{}, err
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		return TimelineFilters{}, err
	}
	if !from.IsZero() && !to.IsZero() {
		if from.After(to) {
			return TimelineFilters{}, shared.Invalid("from", "must not be after to")
		}
		if to.Sub(from) > maxRangeDays*24*time.Hour {
			return TimelineFilters{}, shared.Invalid("to", "range must not exceed %d days", maxRangeDays)
		}
	}
	actor, err := httpx.QueryInt64(r, "actor")
	if err != nil {
		return TimelineFilters{}, err
	}
	q := r.URL.Query()
	page, err := positiveInt(q.Get("page"), "page")
	if err != nil {
		return TimelineFilters{}, err
	}
	size, err := positiveInt(q.Get("page_size"), "page_size")
	if err != nil {
		return TimelineFilters{}, err
	}
	return TimelineFilters{
		From:       from,
		To:         to,
		ActorID:    actor,
		EntityType: strings.TrimSpace(q.Get("entity_type")),
		Action:     strings.TrimSpace(q.Get("action")),
		Page:       page,
		PageSize:   size,
	}, nil
}

func positiveInt(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, shared.Invalid(field, "must be a positive integer")
	}
	return v, nil
}
