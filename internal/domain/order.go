package domain

import "github.com/shopspring/decimal"

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type OrderLineItem struct {
	ProductID   int64           `json:"product_id"`
	VariationID int64           `json:"variation_id,omitempty"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Total       decimal.Decimal `json:"total"`
}

type ShippingLine struct {
	MethodID    string          `json:"method_id"`
	MethodTitle string          `json:"method_title"`
	Total       decimal.Decimal `json:"total"`
}

// OrderRequest is the order-creation payload sent to the commerce backend.
// IdempotencyKey is client-generated; the backend contract deduplicates on it
// so a retry after a transport error cannot double-create the order.
type OrderRequest struct {
	Billing         Address         `json:"billing"`
	Shipping        Address         `json:"shipping"`
	ShippingLine    ShippingLine    `json:"shipping_line"`
	PaymentMethodID string          `json:"payment_method_id"`
	LineItems       []OrderLineItem `json:"line_items"`
	CustomerID      int64           `json:"customer_id,omitempty"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key"`
}

// OrderResult is immutable from the client's perspective once returned.
type OrderResult struct {
	ID       int64           `json:"id"`
	OrderKey string          `json:"order_key"`
	Status   string          `json:"status"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}
