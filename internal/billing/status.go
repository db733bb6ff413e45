package billing

import "github.com/shopspring/decimal"

// InvoiceStatusAfterPayments derives an invoice status from the sum of its
// payments. A cancelled invoice keeps its status.
func InvoiceStatusAfterPayments(current Status, totalDue, paid decimal.Decimal) Status {
	if current == StatusCancelled {
		return current
	}
	if paid.GreaterThanOrEqual(totalDue) {
		return StatusPaid
	}
	return StatusSent
}

// BillStatusAfterPayments promotes a bill to paid once payments cover it.
// Underpaid bills keep their current status, including paid.
func BillStatusAfterPayments(current Status, totalDue, paid decimal.Decimal) Status {
	if current == StatusCancelled {
		return current
	}
	if paid.GreaterThanOrEqual(totalDue) {
		return StatusPaid
	}
	return current
}
