package billing

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

// Handler exposes billing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers billing routes under the API root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionRead))
		r.Get("/billing/invoices", h.listInvoices)
		r.Get("/billing/invoices/{id}", h.getInvoice)
		r.Get("/billing/bills", h.listBills)
		r.Get("/billing/bills/{id}", h.getBill)
		r.Get("/payments", h.listPayments)
		r.Get("/billing/payments", h.listPayments)
		r.Get("/billing/payments/{id}", h.getPayment)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionWrite))
		r.Post("/billing/invoices", h.createInvoice)
		r.Post("/billing/invoices/{id}/send", h.sendInvoice)
		r.Post("/billing/invoices/{id}/cancel", h.cancelInvoice)
		r.Post("/billing/invoices/{id}/send-reminder", h.sendReminder)
		r.Post("/billing/bills", h.createBill)
		r.Post("/billing/bills/{id}/mark-overdue", h.markBillOverdue)
		r.Post("/billing/bills/{id}/cancel", h.cancelBill)
		r.Post("/payments", h.recordPayment)
		r.Post("/billing/payments", h.recordPayment)
		r.Delete("/billing/payments/{id}", h.deletePayment)
	})
}

type invoiceRequest struct {
	Number       string          `json:"number" validate:"required,max=32"`
	Customer     *int64          `json:"customer"`
	Ledger       int64           `json:"ledger" validate:"required,gt=0"`
	Description  string          `json:"description"`
	IssueDate    string          `json:"issue_date"`
	DueDate      string          `json:"due_date" validate:"required"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	Status       string          `json:"status" validate:"omitempty,oneof=draft sent"`
	Notes        string          `json:"notes"`
}

type invoiceResponse struct {
	ID               int64      `json:"id"`
	Number           string     `json:"number"`
	Customer         *int64     `json:"customer"`
	Ledger           int64      `json:"ledger"`
	Description      string     `json:"description"`
	IssueDate        string     `json:"issue_date"`
	DueDate          string     `json:"due_date"`
	Subtotal         string     `json:"subtotal"`
	TaxRate          string     `json:"tax_rate"`
	DiscountRate     string     `json:"discount_rate"`
	TaxAmount        string     `json:"tax_amount"`
	DiscountAmount   string     `json:"discount_amount"`
	TotalDue         string     `json:"total_due"`
	Status           string     `json:"status"`
	IsOverdue        bool       `json:"is_overdue"`
	Notes            string     `json:"notes"`
	LastReminderSent *time.Time `json:"last_reminder_sent"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (h *Handler) toInvoiceResponse(i Invoice) invoiceResponse {
	return invoiceResponse{
		ID: i.ID, Number: i.Number, Customer: i.CustomerID, Ledger: i.LedgerID, Description: i.Description,
		IssueDate: httpx.FormatDate(i.IssueDate), DueDate: httpx.FormatDate(i.DueDate),
		Subtotal: fixed(i.Subtotal), TaxRate: fixed(i.TaxRate), DiscountRate: fixed(i.DiscountRate),
		TaxAmount: fixed(i.TaxAmount()), DiscountAmount: fixed(i.DiscountAmount()), TotalDue: fixed(i.TotalDue()),
		Status: string(i.Status), IsOverdue: i.IsOverdue(h.service.Today()), Notes: i.Notes,
		LastReminderSent: i.LastReminderSent, CreatedAt: i.CreatedAt,
	}
}

type billRequest struct {
	Reference     string          `json:"reference" validate:"required,max=32"`
	VendorName    string          `json:"vendor_name" validate:"required,max=120"`
	Ledger        int64           `json:"ledger" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
	IssuedDate    string          `json:"issued_date"`
	DueDate       string          `json:"due_date" validate:"required"`
	Status        string          `json:"status" validate:"omitempty,oneof=draft sent"`
	PaymentMethod string          `json:"payment_method"`
}

type billResponse struct {
	ID            int64     `json:"id"`
	Reference     string    `json:"reference"`
	VendorName    string    `json:"vendor_name"`
	Ledger        int64     `json:"ledger"`
	Amount        string    `json:"amount"`
	TaxRate       string    `json:"tax_rate"`
	DiscountRate  string    `json:"discount_rate"`
	TotalDue      string    `json:"total_due"`
	IssuedDate    string    `json:"issued_date"`
	DueDate       string    `json:"due_date"`
	Status        string    `json:"status"`
	IsOverdue     bool      `json:"is_overdue"`
	PaymentMethod string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *Handler) toBillResponse(b Bill) billResponse {
	return billResponse{
		ID: b.ID, Reference: b.Reference, VendorName: b.VendorName, Ledger: b.LedgerID,
		Amount: fixed(b.Amount), TaxRate: fixed(b.TaxRate), DiscountRate: fixed(b.DiscountRate), TotalDue: fixed(b.TotalDue()),
		IssuedDate: httpx.FormatDate(b.IssuedDate), DueDate: httpx.FormatDate(b.DueDate),
		Status: string(b.Status), IsOverdue: b.IsOverdue(h.service.Today()), PaymentMethod: string(b.PaymentMethod),
		CreatedAt: b.CreatedAt,
	}
}

type paymentRequest struct {
	Invoice     *int64          `json:"invoice"`
	Bill        *int64          `json:"bill"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"required"`
	PaymentDate string          `json:"payment_date"`
	Reference   string          `json:"reference" validate:"max=64"`
}

type paymentResponse struct {
	ID           int64     `json:"id"`
	Invoice      *int64    `json:"invoice"`
	Bill         *int64    `json:"bill"`
	Amount       string    `json:"amount"`
	Method       string    `json:"method"`
	PaymentDate  string    `json:"payment_date"`
	Reference    string    `json:"reference"`
	RecordedBy   *int64    `json:"recorded_by"`
	CreatedAt    time.Time `json:"created_at"`
	TargetStatus string    `json:"target_status,omitempty"`
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID: p.ID, Invoice: p.InvoiceID, Bill: p.BillID, Amount: fixed(p.Amount), Method: string(p.Method),
		PaymentDate: httpx.FormatDate(p.PaymentDate), Reference: p.Reference, RecordedBy: p.RecordedBy, CreatedAt: p.CreatedAt,
	}
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(shared.MoneyScale)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func optionalDate(field, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return httpx.ParseDate(field, raw)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	customer, err := httpx.QueryInt64(r, "customer")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ledgerID, err := httpx.QueryInt64(r, "ledger")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	items, err := h.service.ListInvoices(r.Context(), InvoiceFilter{
		Status:     Status(q.Get("status")),
		CustomerID: customer,
		LedgerID:   ledgerID,
		Search:     strings.TrimSpace(q.Get("search")),
		Page:       shared.PageFromQuery(q),
	})
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	httpx.List(w, httpx.MapSlice(items, h.toInvoiceResponse))
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toInvoiceResponse(inv))
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	issue, err := optionalDate("issue_date", req.IssueDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	due, err := httpx.ParseDate("due_date", req.DueDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), InvoiceInput{
		Number: req.Number, CustomerID: req.Customer, LedgerID: req.Ledger, Description: req.Description,
		IssueDate: issue, DueDate: due, Subtotal: req.Subtotal, TaxRate: req.TaxRate, DiscountRate: req.DiscountRate,
		Status: Status(req.Status), Notes: req.Notes,
	})
	if err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	httpx.Created(w, httpx.Path("api", "billing", "invoices", inv.ID), h.toInvoiceResponse(inv))
}

func (h *Handler) invoiceAction(w http.ResponseWriter, r *http.Request, op string, fn func(*http.Request, int64) (Invoice, error)) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := fn(r, id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toInvoiceResponse(inv))
}

func (h *Handler) sendInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(w, r, "send invoice", func(r *http.Request, id int64) (Invoice, error) {
		return h.service.SendInvoice(r.Context(), id)
	})
}

func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	h.invoiceAction(w, r, "cancel invoice", func(r *http.Request, id int64) (Invoice, error) {
		return h.service.CancelInvoice(r.Context(), id)
	})
}

func (h *Handler) sendReminder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.SendReminder(r.Context(), id); err != nil {
		h.fail(w, "send invoice reminder", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"detail": "Reminder queued."})
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := httpx.QueryInt64(r, "ledger")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	items, err := h.service.ListBills(r.Context(), BillFilter{
		Status:        Status(q.Get("status")),
		PaymentMethod: shared.PaymentMethod(q.Get("payment_method")),
		LedgerID:      ledgerID,
		Search:        strings.TrimSpace(q.Get("search")),
		Page:          shared.PageFromQuery(q),
	})
	if err != nil {
		h.fail(w, "list bills", err)
		return
	}
	httpx.List(w, httpx.MapSlice(items, h.toBillResponse))
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		h.fail(w, "get bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toBillResponse(b))
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	issued, err := optionalDate("issued_date", req.IssuedDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	due, err := httpx.ParseDate("due_date", req.DueDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.CreateBill(r.Context(), BillInput{
		Reference: req.Reference, VendorName: req.VendorName, LedgerID: req.Ledger, Amount: req.Amount,
		TaxRate: req.TaxRate, DiscountRate: req.DiscountRate, IssuedDate: issued, DueDate: due,
		Status: Status(req.Status), PaymentMethod: shared.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		h.fail(w, "create bill", err)
		return
	}
	httpx.Created(w, httpx.Path("api", "billing", "bills", b.ID), h.toBillResponse(b))
}

func (h *Handler) markBillOverdue(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.MarkBillOverdue(r.Context(), id); err != nil {
		h.fail(w, "mark bill overdue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"detail": "Bill marked as overdue."})
}

func (h *Handler) cancelBill(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.CancelBill(r.Context(), id)
	if err != nil {
		h.fail(w, "cancel bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toBillResponse(b))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := httpx.QueryInt64(r, "invoice")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	billID, err := httpx.QueryInt64(r, "bill")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	items, err := h.service.ListPayments(r.Context(), PaymentFilter{
		Method:    shared.PaymentMethod(q.Get("method")),
		InvoiceID: invoiceID,
		BillID:    billID,
		Page:      shared.PageFromQuery(q),
	})
	if err != nil {
		h.fail(w, "list payments", err)
		return
	}
	httpx.List(w, httpx.MapSlice(items, toPaymentResponse))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		h.fail(w, "get payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := optionalDate("payment_date", req.PaymentDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, status, err := h.service.RecordPayment(r.Context(), PaymentInput{
		InvoiceID: req.Invoice, BillID: req.Bill, Amount: req.Amount, Method: shared.PaymentMethod(req.Method),
		PaymentDate: date, Reference: req.Reference,
	})
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	resp := toPaymentResponse(p)
	resp.TargetStatus = string(status)
	httpx.Created(w, httpx.Path("api", "billing", "payments", p.ID), resp)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.DeletePayment(r.Context(), id); err != nil {
		h.fail(w, "delete payment", err)
		return
	}
	httpx.NoContent(w)
}
