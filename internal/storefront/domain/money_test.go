package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimalIsDefensive(t *testing.T) {
	cases := map[string]string{
		"10.00":    "10",
		"10.50HKD": "10.5",
		" 3 ":      "3",
		"-2.5x":    "-2.5",
		"abc":      "0",
		"":         "0",
		"7.":       "7",
		"1.2.3":    "1.2",
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDecimal(in).String(), in)
	}
}

func TestMoneyAcceptsStringsNumbersAndNull(t *testing.T) {
	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.30","b":4.5,"c":null}`), &v))
	assert.Equal(t, "12.3", v.A.Decimal().String())
	assert.Equal(t, "4.5", v.B.Decimal().String())
	assert.True(t, v.C.Decimal().IsZero())
}

func TestParseOrder(t *testing.T) {
	order, err := ParseOrder([]byte(`{"order_number":1001,"customer":null,"line_items":[{"variant_id":5,"price":"10.00","quantity":3}]}`))
	require.NoError(t, err)
	assert.Equal(t, "1001", order.OrderNumber.String())
	assert.Nil(t, order.Customer)
	require.Len(t, order.LineItems, 1)
	assert.Equal(t, int64(5), *order.LineItems[0].VariantID)
}
