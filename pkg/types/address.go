package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is a shipping or billing address stored as a JSON document column.
type Address struct {
	Name       string  `json:"name,omitempty"`
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

// Validate reports the first missing required field.
func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return fmt.Errorf("address: missing line1")
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("address: missing city")
	case strings.TrimSpace(a.PostalCode) == "":
		return fmt.Errorf("address: missing postal_code")
	}
	return nil
}

// IsZero reports whether no address was supplied at all.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Line1) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.PostalCode) == ""
}

// Value marshals Address as JSON, defaulting the country to US.
func (a Address) Value() (driver.Value, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Country) == "" {
		a.Country = "US"
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("address: marshal %w", err)
	}
	return string(raw), nil
}

// Scan decodes a JSON document column.
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}

	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("address: unsupported scan type %T", value)
	}
	if strings.TrimSpace(raw) == "" {
		*a = Address{}
		return nil
	}
	var decoded Address
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return fmt.Errorf("address: decode %w", err)
	}
	*a = decoded
	return nil
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
