package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ams/internal/shared"
)

// Aggregate is the sum of entries of one side within one category type.
type Aggregate struct {
	CategoryType string
	EntryType    string
	Total        decimal.Decimal
}

// Totals are the period figures every report type is derived from.
type Totals struct {
	Income      decimal.Decimal
	Expense     decimal.Decimal
	Assets      decimal.Decimal
	Liabilities decimal.Decimal
}

// ProfitLoss is income minus expense.
func (t Totals) ProfitLoss() decimal.Decimal { return t.Income.Sub(t.Expense) }

// Equity is assets minus liabilities.
func (t Totals) Equity() decimal.Decimal { return t.Assets.Sub(t.Liabilities) }

// Sum folds per-side aggregates into Totals. Income counts credits, expense
// counts debits, assets are debit-normal and liabilities credit-normal.
func Sum(rows []Aggregate) Totals {
	t := Totals{Income: decimal.Zero, Expense: decimal.Zero, Assets: decimal.Zero, Liabilities: decimal.Zero}
	for _, r := range rows {
		debit := r.EntryType == "debit"
		switch r.CategoryType {
		case "income":
			if !debit {
				t.Income = t.Income.Add(r.Total)
			}
		case "expense":
			if debit {
				t.Expense = t.Expense.Add(r.Total)
			}
		case "asset":
			if debit {
				t.Assets = t.Assets.Add(r.Total)
			} else {
				t.Assets = t.Assets.Sub(r.Total)
			}
		case "liability":
			if debit {
				t.Liabilities = t.Liabilities.Sub(r.Total)
			} else {
				t.Liabilities = t.Liabilities.Add(r.Total)
			}
		}
	}
	return t
}

// Build derives the payload and companion summary for typ.
func Build(typ Type, t Totals) (map[string]string, Summary) {
	f := func(d decimal.Decimal) string { return d.StringFixed(shared.MoneyScale) }
	switch typ {
	case TypeBalanceSheet:
		return map[string]string{
				"assets":      f(t.Assets),
				"liabilities": f(t.Liabilities),
				"equity":      f(t.Equity()),
			}, Summary{BalanceSheet: &BalanceSheet{
				TotalAssets: t.Assets, TotalLiabilities: t.Liabilities, TotalEquity: t.Equity(),
			}}
	case TypeIncome:
		return map[string]string{"income_total": f(t.Income)},
			Summary{IncomeStatement: &IncomeStatement{TotalRevenue: t.Income, TotalExpense: decimal.Zero, NetIncome: decimal.Zero}}
	case TypeExpense:
		return map[string]string{"expense_total": f(t.Expense)},
			Summary{IncomeStatement: &IncomeStatement{TotalRevenue: decimal.Zero, TotalExpense: t.Expense, NetIncome: decimal.Zero}}
	default:
		return map[string]string{
				"income_total":  f(t.Income),
				"expense_total": f(t.Expense),
				"profit_loss":   f(t.ProfitLoss()),
			}, Summary{IncomeStatement: &IncomeStatement{
				TotalRevenue: t.Income, TotalExpense: t.Expense, NetIncome: t.ProfitLoss(),
			}}
	}
}
