package types

import (
	"strings"
	"testing"
)

func TestAddressValueRoundTrip(t *testing.T) {
	line2 := "Suite 4"
	addr := Address{Line1: "1 Main St", Line2: &line2, City: "Austin", State: "TX", PostalCode: "78701"}

	value, err := addr.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	raw, ok := value.(string)
	if !ok || !strings.Contains(raw, `"country":"US"`) {
		t.Fatalf("expected default country in %v", value)
	}

	var decoded Address
	if err := decoded.Scan([]byte(raw)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if decoded.City != "Austin" || decoded.Line2 == nil || *decoded.Line2 != line2 || decoded.Country != "US" {
		t.Fatalf("unexpected decoded address %+v", decoded)
	}
}

func TestAddressValidate(t *testing.T) {
	if _, err := (Address{City: "Austin", PostalCode: "78701"}).Value(); err == nil {
		t.Fatal("expected missing line1 to fail")
	}
	if !(Address{}).IsZero() {
		t.Fatal("empty address should be zero")
	}
	var a Address
	if err := a.Scan(nil); err != nil || !a.IsZero() {
		t.Fatalf("nil scan should reset address, err=%v", err)
	}
	if err := a.Scan(42); err == nil {
		t.Fatal("expected unsupported scan type error")
	}
}
