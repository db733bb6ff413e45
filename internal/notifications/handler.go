package notifications

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ams/internal/platform/httpx"
	"github.com/odyssey-erp/ams/internal/rbac"
	"github.com/odyssey-erp/ams/internal/shared"
)

// Handler exposes notification endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers notification routes under the API root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionReadNotifications))
		r.Get("/notifications", h.list)
		r.Post("/notifications/mark-all-read", h.markAllRead)
		r.Patch("/notifications/{id}", h.update)
		r.With(h.rbac.Require(rbac.ActionSeeAllNotifications)).Delete("/notifications/{id}", h.delete)
	})
}

// scope widens the listing to every notification for roles allowed to see
// all of them.
func scope(r *http.Request) Scope {
	p, _ := shared.PrincipalFromContext(r.Context())
	return Scope{All: rbac.Allowed(r, rbac.ActionSeeAllNotifications), UserID: p.UserID}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	unread, err := httpx.QueryBool(r, "unread")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	isRead, err := httpx.QueryBool(r, "is_read")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	items, err := h.service.List(r.Context(), Filter{
		Scope:  scope(r),
		Unread: unread != nil && *unread,
		IsRead: isRead,
		Level:  q.Get("level"),
		Search: strings.TrimSpace(q.Get("search")),
		Page:   shared.PageFromQuery(q),
	})
	if err != nil {
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error("list notifications", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, items)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.MarkAllRead(r.Context(), scope(r))
	if err != nil {
		h.logger.Error("mark notifications read", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

type updateRequest struct {
	IsRead *bool `json:"is_read" validate:"required"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.service.MarkRead(r.Context(), scope(r), id, *req.IsRead)
	if err != nil {
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error("update notification", slog.Int64("id", id), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, n)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error("delete notification", slog.Int64("id", id), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}
