package ledger

import (
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

// Handler exposes ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers ledger routes under the API root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionRead))
		r.Get("/accounts/categories", h.listCategories)
		r.Get("/accounts/categories/{id}", h.getCategory)
		r.Get("/accounts/ledgers", h.listLedgers)
		r.Get("/accounts/ledgers/{id}", h.getLedger)
		r.Get("/accounts/entries", h.listEntries)
		r.Get("/accounts/entries/{id}", h.getEntry)
		r.Get("/accounts/balances", h.listBalances)
		r.Get("/accounts/balances/{id}", h.getBalance)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionWrite))
		r.Post("/accounts/categories", h.createCategory)
		r.Post("/accounts/ledgers", h.createLedger)
		r.Post("/accounts/ledgers/{id}/recalculate", h.recalculate)
		r.Post("/accounts/entries", h.createEntry)
		r.Post("/ledgers/{id}/entries", h.createLedgerEntry)
		r.Delete("/accounts/entries/{id}", h.deleteEntry)
	})
}

type categoryRequest struct {
	Code        string `json:"code" validate:"required,max=32"`
	Name        string `json:"name" validate:"required,max=120"`
	Type        string `json:"type" validate:"required,oneof=asset liability income expense"`
	Description string `json:"description"`
}

type categoryResponse struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCategoryResponse(c Category) categoryResponse {
	return categoryResponse{ID: c.ID, Code: c.Code, Name: c.Name, Type: string(c.Type), Description: c.Description, CreatedAt: c.CreatedAt}
}

type ledgerRequest struct {
	Code        string `json:"code" validate:"required,max=32"`
	Name        string `json:"name" validate:"required,max=120"`
	Category    int64  `json:"category" validate:"required,gt=0"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

type ledgerResponse struct {
	ID               int64      `json:"id"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	Category         int64      `json:"category"`
	Owner            *int64     `json:"owner"`
	Description      string     `json:"description"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	Balance          *string    `json:"balance"`
	BalanceUpdatedAt *time.Time `json:"balance_updated_at,omitempty"`
}

func toLedgerResponse(l Ledger) ledgerResponse {
	resp := ledgerResponse{
		ID: l.ID, Code: l.Code, Name: l.Name, Category: l.CategoryID, Owner: l.OwnerID,
		Description: l.Description, IsActive: l.IsActive, CreatedAt: l.CreatedAt,
	}
	if l.Balance != nil {
		bal := l.Balance.Balance.StringFixed(shared.MoneyScale)
		resp.Balance = &bal
		resp.BalanceUpdatedAt = &l.Balance.UpdatedAt
	}
	return resp
}

type entryRequest struct {
	Ledger        int64           `json:"ledger"`
	EntryType     string          `json:"entry_type" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" validate:"required"`
	Description   string          `json:"description"`
	Reference     string          `json:"reference" validate:"max=64"`
	EntryDate     string          `json:"entry_date"`
}

type entryResponse struct {
	ID            int64     `json:"id"`
	Ledger        int64     `json:"ledger"`
	EntryType     string    `json:"entry_type"`
	Amount        string    `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	Description   string    `json:"description"`
	Reference     string    `json:"reference"`
	EntryDate     string    `json:"entry_date"`
	CreatedBy     *int64    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	LedgerBalance string    `json:"ledger_balance,omitempty"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID: e.ID, Ledger: e.LedgerID, EntryType: string(e.Type), Amount: e.Amount.StringFixed(shared.MoneyScale),
		PaymentMethod: string(e.PaymentMethod), Description: e.Description, Reference: e.Reference,
		EntryDate: httpx.FormatDate(e.EntryDate), CreatedBy: e.CreatedBy, CreatedAt: e.CreatedAt,
	}
}

type balanceResponse struct {
	Ledger    int64     `json:"ledger"`
	Balance   string    `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toBalanceResponse(b Balance) balanceResponse {
	return balanceResponse{Ledger: b.LedgerID, Balance: b.Balance.StringFixed(shared.MoneyScale), UpdatedAt: b.UpdatedAt}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.ListCategories(r.Context(), CategoryFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Type:   CategoryType(q.Get("type")),
	})
	if err != nil {
		h.fail(w, "list categories", err)
		return
	}
	httpx.List(w, httpx.MapSlice(items, toCategoryResponse))
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		h.fail(w, "get category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCategoryResponse(c))
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateCategory(r.Context(), CategoryInput{
		Code: req.Code, Name: req.Name, Type: CategoryType(req.Type), Description: req.Description,
	})
	if err != nil {
		h.fail(w, "create category", err)
		return
	}
	httpx.Created(w, httpx.Path("api", "accounts", "categories", c.ID), toCategoryResponse(c))
}

func (h *Handler) listLedgers(w http.ResponseWriter, r *http.Request) {
	category, err := httpx.QueryInt64(r, "category")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	active, err := httpx.QueryBool(r, "is_active")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListLedgers(r.Context(), LedgerFilter{
		CategoryID: category,
		Active:     active,
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
		Page:       shared.PageFromQuery(r.URL.Query()),
	})
	if err != nil {
		h.fail(w, "list ledgers", err)
		return
	}
	httpx.List(w, httpx.MapSlice(items, toLedgerResponse))
}

func (h *Handler) getLedger(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	l, err := h.service.GetLedger(r.Context(), id)
	if err != nil {
		h.fail(w, "get ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLedgerResponse(l))
}

func (h *Handler) createLedger(w http.ResponseWriter, r *http.Request) {
	var req ledgerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	l, err := h.service.CreateLedger(r.Context(), LedgerInput{
		Code: req.Code, Name: req.Name, CategoryID: req.Category, Description: req.Description, IsActive: active,
	})
	if err != nil {
		h.fail(w, "create ledger", err)
		return
	}
	httpx.Created(w, httpx.Path("api", "accounts", "ledgers", l.ID), toLedgerResponse(l))
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bal, err := h.service.RecalculateLedger(r.Context(), id)
	if err != nil {
		h.fail(w, "recalculate ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(bal))
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	h.postEntry(w, r, 0)
}

func (h *Handler) createLedgerEntry(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.postEntry(w, r, id)
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request, ledgerID int64) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if ledgerID == 0 {
		ledgerID = req.Ledger
	}
	in := EntryInput{
		LedgerID:      ledgerID,
		Type:          EntryType(req.EntryType),
		Amount:        req.Amount,
		PaymentMethod: shared.PaymentMethod(req.PaymentMethod),
		Description:   req.Description,
		Reference:     req.Reference,
	}
	if req.EntryDate != "" {
		d, err := httpx.ParseDate("entry_date", req.EntryDate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.EntryDate = d
	}
	entry, bal, err := h.service.CreateEntry(r.Context(), in)
	if err != nil {
		h.fail(w, "create ledger entry", err)
		return
	}
	resp := toEntryResponse(entry)
	resp.LedgerBalance = bal.Balance.StringFixed(shared.MoneyScale)
	httpx.Created(w, httpx.Path("api", "accounts", "entries", entry.ID), resp)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := httpx.QueryInt64(r, "ledger")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := httpx.QueryDate(r, "start_date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "end_date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	items, err := h.service.ListEntries(r.Context(), EntryFilter{
		LedgerID:      ledgerID,
		Type:          EntryType(q.Get("entry_type")),
		PaymentMethod: shared.PaymentMethod(q.Get("payment_method")),
		From:          from,
		To:            to,
		Page:          shared.PageFromQuery(q),
	})
	if err != nil {
		h.fail(w, "list ledger entries", err)
		return
	}
	httpx.List(w, httpx.MapSlice(items, toEntryResponse))
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.fail(w, "get ledger entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(e))
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.DeleteEntry(r.Context(), id); err != nil {
		h.fail(w, "delete ledger entry", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listBalances(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListBalances(r.Context(), shared.PageFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, "list balances", err)
		return
	}
	httpx.List(w, httpx.MapSlice(items, toBalanceResponse))
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.GetBalance(r.Context(), id)
	if err != nil {
		h.fail(w, "get balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(b))
}
