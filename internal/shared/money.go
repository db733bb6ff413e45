package shared

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fraction digits stored for every amount.
const MoneyScale = 2

// maxMoneyIntDigits mirrors NUMERIC(14,2).
const maxMoneyIntDigits = 12

var hundred = decimal.NewFromInt(100)

// Hundred returns 100 as a decimal for percentage math.
func Hundred() decimal.Decimal {
	return hundred
}

// TruncateMoney cuts v to two fraction digits without rounding.
func TruncateMoney(v decimal.Decimal) decimal.Decimal {
	return v.Truncate(MoneyScale)
}

// ValidateAmount checks a stored money amount.
func ValidateAmount(field string, v decimal.Decimal, positive bool) error {
	if positive && !v.IsPositive() {
		return Invalid(field, "must be greater than zero")
	}
	if v.IsNegative() {
		return Invalid(field, "must not be negative")
	}
	if !v.Equal(v.Truncate(MoneyScale)) {
		return Invalid(field, "ensure that there are no more than %d decimal places", MoneyScale)
	}
	if len(v.Abs().Truncate(0).String()) > maxMoneyIntDigits {
		return Invalid(field, "ensure that there are no more than %d digits before the decimal point", maxMoneyIntDigits)
	}
	return nil
}

// ValidateRate checks a percentage stored as NUMERIC(5,2).
func ValidateRate(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return Invalid(field, "must not be negative")
	}
	if v.GreaterThan(hundred) {
		return Invalid(field, "must not exceed 100")
	}
	if !v.Equal(v.Truncate(MoneyScale)) {
		return Invalid(field, "ensure that there are no more than %d decimal places", MoneyScale)
	}
	return nil
}
