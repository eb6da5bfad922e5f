package enums

import "fmt"

// PaymentStatus tracks money collected for an order. Orders are created
// unpaid; settlement happens outside the inventory core.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// RefundDue reports whether cancelling an order in this state leaves money to return.
func (p PaymentStatus) RefundDue() bool {
	return p == PaymentStatusPaid
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	status := PaymentStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid payment status %q", value)
	}
	return status, nil
}
