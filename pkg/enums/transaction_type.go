package enums

import "fmt"

// TransactionType classifies an inventory ledger entry.
type TransactionType string

const (
	TransactionSale       TransactionType = "sale"
	TransactionReturn     TransactionType = "return"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionRestock    TransactionType = "restock"
)

var validTransactionTypes = []TransactionType{
	TransactionSale,
	TransactionReturn,
	TransactionAdjustment,
	TransactionRestock,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// TransactionTypes lists every known ledger transaction type in a stable order.
func TransactionTypes() []TransactionType {
	out := make([]TransactionType, len(validTransactionTypes))
	copy(out, validTransactionTypes)
	return out
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
