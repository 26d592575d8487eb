package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Money holds a storefront amount as sent on the wire. The storefront usually
// encodes amounts as strings ("10.00") but numbers and null are accepted.
type Money string

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Money(s)
		return nil
	}
	*m = Money(data)
	return nil
}

// Decimal parses the leading numeric part of the amount. Trailing characters
// are ignored and anything unparsable yields zero.
func (m Money) Decimal() decimal.Decimal {
	return ParseDecimal(string(m))
}

// ParseDecimal reads an optional sign, digits and one decimal point from the
// start of s and stops at the first other character.
func ParseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	var b strings.Builder
	seenDigit, seenPoint := false, false
scan:
	for i, r := range s {
		switch {
		case (r == '-' || r == '+') && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			seenDigit = true
			b.WriteRune(r)
		case r == '.' && !seenPoint:
			seenPoint = true
			b.WriteRune(r)
		default:
			break scan
		}
	}
	if !seenDigit {
		return decimal.Zero
	}
	out := strings.TrimSuffix(b.String(), ".")
	d, err := decimal.NewFromString(out)
	if err != nil {
		return decimal.Zero
	}
	return d
}
