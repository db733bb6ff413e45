package reports

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/ams/internal/platform/httpx"
	"github.com/odyssey-erp/ams/internal/rbac"
	"github.com/odyssey-erp/ams/internal/shared"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers report routes under the API root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(h.rbac.Require(rbac.ActionCreateReport)).Post("/", h.generate)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.ActionRead))
			r.Get("/", h.list)
			r.Get("/{id}", h.get)
			r.Get("/{id}/export", h.export)
			r.Get("/{id}/export/{format}", h.export)
		})
	})
}

type reportRequest struct {
	ReportType   string         `json:"report_type" validate:"required"`
	StartDate    string         `json:"start_date" validate:"required"`
	EndDate      string         `json:"end_date" validate:"required"`
	ExportFormat string         `json:"export_format"`
	Filters      map[string]any `json:"filters"`
}

type reportResponse struct {
	ID           int64             `json:"id"`
	ReportType   string            `json:"report_type"`
	Label        string            `json:"label"`
	StartDate    string            `json:"start_date"`
	EndDate      string            `json:"end_date"`
	RequestedBy  *int64            `json:"requested_by"`
	GeneratedAt  time.Time         `json:"generated_at"`
	ExportFormat string            `json:"export_format"`
	Data         map[string]string `json:"data"`
	Filters      map[string]any    `json:"filters"`
	Status       string            `json:"status"`
}

func (h *Handler) toResponse(rep Report) reportResponse {
	return reportResponse{
		ID: rep.ID, ReportType: string(rep.Type), Label: h.label(rep.Type),
		StartDate: httpx.FormatDate(rep.StartDate), EndDate: httpx.FormatDate(rep.EndDate),
		RequestedBy: rep.RequestedBy, GeneratedAt: rep.GeneratedAt, ExportFormat: string(rep.Format),
		Data: rep.Data, Filters: rep.Filters, Status: rep.Status,
	}
}

func (h *Handler) label(t Type) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(t), "_", " "))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := httpx.ParseDate("start_date", req.StartDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := httpx.ParseDate("end_date", req.EndDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rep, err := h.service.Generate(r.Context(), Input{
		Type: Type(req.ReportType), StartDate: start, EndDate: end, Format: Format(req.ExportFormat), Filters: req.Filters,
	})
	if err != nil {
		h.fail(w, "generate report", err)
		return
	}
	httpx.Created(w, httpx.Path("api", "reports", rep.ID), h.toResponse(rep))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.List(r.Context(), Filter{
		Type:   Type(q.Get("report_type")),
		Format: Format(q.Get("export_format")),
		Page:   shared.PageFromQuery(q),
	})
	if err != nil {
		h.fail(w, "list reports", err)
		return
	}
	httpx.List(w, httpx.MapSlice(items, h.toResponse))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rep, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(rep))
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Export(r.Context(), id)
	if err != nil {
		h.fail(w, "export report", err)
		return
	}
	if format := chi.URLParam(r, "format"); format != "" && Format(format) != out.Format {
		httpx.RespondError(w, ErrReportNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
