package shared

// PaymentMethod is how money moved.
type PaymentMethod string

// Supported payment methods.
const (
	PaymentCash   PaymentMethod = "cash"
	PaymentBank   PaymentMethod = "bank"
	PaymentOnline PaymentMethod = "online"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentBank, PaymentOnline:
		return true
	}
	return false
}

// ValidatePaymentMethod rejects unknown methods for field.
func ValidatePaymentMethod(field string, m PaymentMethod) error {
	if !m.Valid() {
		return Invalid(field, "%q is not a valid choice", m)
	}
	return nil
}
