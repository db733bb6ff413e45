package transactions

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ams/internal/platform/httpx"
	"github.com/odyssey-erp/ams/internal/rbac"
	"github.com/odyssey-erp/ams/internal/shared"
)

// Handler exposes transaction endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers transaction routes under the API root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.With(h.rbac.Require(rbac.ActionRead)).Get("/", h.list)
		r.With(h.rbac.Require(rbac.ActionRead)).Get("/{id}", h.get)
		r.With(h.rbac.Require(rbac.ActionWrite)).Post("/", h.create)
		r.With(h.rbac.Require(rbac.ActionApprove)).Post("/{id}/approve", h.approve)
		r.With(h.rbac.Require(rbac.ActionApprove)).Post("/{id}/reject", h.reject)
	})
}

type transactionRequest struct {
	Ledger          int64           `json:"ledger" validate:"required,gt=0"`
	TransactionType string          `json:"transaction_type" validate:"required,oneof=incoming outgoing"`
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=cash bank online"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"max=10"`
	Description     string          `json:"description"`
	Reference       string          `json:"reference" validate:"max=64"`
	TransactionDate string          `json:"transaction_date"`
}

type transactionResponse struct {
	ID              int64      `json:"id"`
	Ledger          int64      `json:"ledger"`
	TransactionType string     `json:"transaction_type"`
	PaymentMethod   string     `json:"payment_method"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	Description     string     `json:"description"`
	Reference       string     `json:"reference"`
	TransactionDate string     `json:"transaction_date"`
	Status          string     `json:"status"`
	CreatedBy       int64      `json:"created_by"`
	ApprovedBy      *int64     `json:"approved_by"`
	ApprovedAt      *time.Time `json:"approved_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toResponse(t Transaction) transactionResponse {
	return transactionResponse{
		ID: t.ID, Ledger: t.LedgerID, TransactionType: string(t.Type), PaymentMethod: string(t.PaymentMethod),
		Amount: t.Amount.StringFixed(shared.MoneyScale), Currency: t.Currency, Description: t.Description,
		Reference: t.Reference, TransactionDate: httpx.FormatDate(t.Date), Status: string(t.Status),
		CreatedBy: t.CreatedBy, ApprovedBy: t.ApprovedBy, ApprovedAt: t.ApprovedAt, CreatedAt: t.CreatedAt,
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := httpx.QueryInt64(r, "ledger")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	items, err := h.service.List(r.Context(), Filter{
		Type:          Type(q.Get("transaction_type")),
		PaymentMethod: shared.PaymentMethod(q.Get("payment_method")),
		Status:        Status(q.Get("status")),
		LedgerID:      ledgerID,
		Page:          shared.PageFromQuery(q),
	})
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	httpx.List(w, httpx.MapSlice(items, toResponse))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var date time.Time
	if strings.TrimSpace(req.TransactionDate) != "" {
		var err error
		if date, err = httpx.ParseDate("transaction_date", req.TransactionDate); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	t, err := h.service.Create(r.Context(), Input{
		LedgerID: req.Ledger, Type: Type(req.TransactionType), PaymentMethod: shared.PaymentMethod(req.PaymentMethod),
		Amount: req.Amount, Currency: req.Currency, Description: req.Description, Reference: req.Reference, Date: date,
	})
	if err != nil {
		h.fail(w, "create transaction", err)
		return
	}
	httpx.Created(w, httpx.Path("api", "transactions", t.ID), toResponse(t))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "approve transaction", h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "reject transaction", h.service.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id int64) (Transaction, error)) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := fn(r.Context(), id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(t))
}
