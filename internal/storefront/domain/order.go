package domain

import (
	"encoding/json"
	"strings"
)

// Order is the subset of the storefront order payload the POS sale is built from.
type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     json.Number     `json:"order_number"`
	Name            string          `json:"name"`
	CreatedAt       string          `json:"created_at"`
	Currency        string          `json:"currency"`
	TotalPrice      Money           `json:"total_price"`
	TotalDiscounts  Money           `json:"total_discounts"`
	Gateway         string          `json:"gateway"`
	GatewayNames    []string        `json:"payment_gateway_names"`
	PaymentDetails  *PaymentDetails `json:"payment_details"`
	Customer        *Customer       `json:"customer"`
	LineItems       []LineItem      `json:"line_items"`
	ShippingLines   []ShippingLine  `json:"shipping_lines"`
	FinancialStatus string          `json:"financial_status"`
}

type PaymentDetails struct {
	CreditCardCompany string `json:"credit_card_company"`
}

type Customer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins the non-empty name parts.
func (c Customer) FullName() string {
	return strings.TrimSpace(strings.Join(strings.Fields(c.FirstName+" "+c.LastName), " "))
}

type LineItem struct {
	ID                  int64                `json:"id"`
	VariantID           *int64               `json:"variant_id"`
	ProductID           *int64               `json:"product_id"`
	SKU                 string               `json:"sku"`
	Name                string               `json:"name"`
	Title               string               `json:"title"`
	Price               Money                `json:"price"`
	Quantity            int                  `json:"quantity"`
	TotalDiscount       Money                `json:"total_discount"`
	DiscountAllocations []DiscountAllocation `json:"discount_allocations"`
}

type DiscountAllocation struct {
	Amount Money `json:"amount"`
}

type ShippingLine struct {
	Title           string `json:"title"`
	Code            string `json:"code"`
	Price           Money  `json:"price"`
	DiscountedPrice Money  `json:"discounted_price"`
}

// ParseOrder decodes a raw webhook payload.
func ParseOrder(payload []byte) (Order, error) {
	var order Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}
