package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProductID identifies a catalog product (numeric) or a listed product
// (uuid). It decodes from a JSON number or string and encodes numeric ids
// back as numbers.
type ProductID string

// Numeric reports whether the id is a base-10 integer.
func (id ProductID) Numeric() bool {
	_, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil
}

func (id ProductID) String() string { return string(id) }

// MarshalJSON implements json.Marshaler.
func (id ProductID) MarshalJSON() ([]byte, error) {
	if id.Numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode product id: %w", err)
		}
		*id = ParseProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode product id: %w", err)
	}
	*id = ParseProductID(n.String())
	return nil
}

// ParseProductID normalises a path or body value. Integral numbers lose
// any fractional zero suffix so "7" and "7.0" name the same product.
func ParseProductID(raw string) ProductID {
	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) && !strings.ContainsAny(raw, "eE") {
		return ProductID(strconv.FormatInt(int64(f), 10))
	}
	return ProductID(raw)
}
