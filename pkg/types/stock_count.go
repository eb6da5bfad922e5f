package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StockCount is a non-negative unit count. It is an integer everywhere in the
// service and is rendered as a JSON string for clients that expect the
// legacy string encoding. Decoding accepts either a string or a number; an
// unparsable or negative value decodes as zero.
type StockCount int

// MarshalJSON implements json.Marshaler.
func (s StockCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(s)))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StockCount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = 0
		return nil
	}

	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("stock count: %w", err)
		}
		*s = ParseStockCount(raw)
		return nil
	}

	var number float64
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf("stock count: %w", err)
	}
	*s = clampStockCount(number)
	return nil
}

// Int returns the count as an int.
func (s StockCount) Int() int {
	return int(s)
}

// ParseStockCount parses a decimal string, treating garbage as zero.
func ParseStockCount(raw string) StockCount {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return clampStockCount(float64(n))
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return clampStockCount(f)
}

func clampStockCount(f float64) StockCount {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return StockCount(math.MaxInt32)
	}
	return StockCount(math.Floor(f))
}
