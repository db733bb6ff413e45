// Package reports builds financial summaries from ledger entries.
package reports

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ams/internal/shared"
)

// Type selects the aggregation.
type Type string

const (
	TypeIncome       Type = "income"
	TypeExpense      Type = "expense"
	TypeProfitLoss   Type = "profit_loss"
	TypeBalanceSheet Type = "balance_sheet"
)

// Valid reports whether t is a known report type.
func (t Type) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeProfitLoss, TypeBalanceSheet:
		return true
	}
	return false
}

// Format is the requested export format.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
)

// Valid reports whether f is a known export format.
func (f Format) Valid() bool {
	return f == FormatPDF || f == FormatExcel || f == FormatCSV
}

const statusGenerated = "generated"

var ErrReportNotFound = fmt.Errorf("%w: report", shared.ErrNotFound)

// Report is an immutable generated summary.
type Report struct {
	ID          int64             `json:"id"`
	Type        Type              `json:"report_type"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	RequestedBy *int64            `json:"requested_by"`
	GeneratedAt time.Time         `json:"generated_at"`
	Format      Format            `json:"export_format"`
	Data        map[string]string `json:"data"`
	Filters     map[string]any    `json:"filters"`
	Status      string            `json:"status"`
}

// BalanceSheet is the companion row of a balance_sheet report.
type BalanceSheet struct {
	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	TotalEquity      decimal.Decimal
}

// IncomeStatement is the companion row of income, expense and profit_loss reports.
type IncomeStatement struct {
	TotalRevenue decimal.Decimal
	TotalExpense decimal.Decimal
	NetIncome    decimal.Decimal
}

// Summary holds exactly one companion row.
type Summary struct {
	BalanceSheet    *BalanceSheet
	IncomeStatement *IncomeStatement
}

// Input requests a report.
type Input struct {
	Type      Type
	StartDate time.Time
	EndDate   time.Time
	Format    Format
	Filters   map[string]any
}

// Validate checks the request against today before any aggregation runs.
func (in *Input) Validate(today time.Time) error {
	if !in.Type.Valid() {
		return shared.Invalid("report_type", "%q is not a valid choice", in.Type)
	}
	if in.Format == "" {
		in.Format = FormatPDF
	}
	if !in.Format.Valid() {
		return shared.Invalid("export_format", "%q is not a valid choice", in.Format)
	}
	if in.StartDate.IsZero() {
		return shared.Invalid("start_date", "this field is required")
	}
	if in.EndDate.IsZero() {
		return shared.Invalid("end_date", "this field is required")
	}
	if in.StartDate.After(in.EndDate) {
		return shared.Invalid("start_date", "start date must be before end date")
	}
	if in.EndDate.After(today) {
		return shared.Invalid("end_date", "end date cannot be in the future")
	}
	if in.Filters == nil {
		in.Filters = map[string]any{}
	}
	return nil
}

// Filter narrows report listings.
type Filter struct {
	Type   Type
	Format Format
	Page   shared.Page
}

// Export is the downloadable view of a report.
type Export struct {
	Format      Format            `json:"format"`
	Data        map[string]string `json:"data"`
	DownloadURL string            `json:"download_url"`
}
