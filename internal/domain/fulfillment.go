package domain

import "github.com/shopspring/decimal"

// ShippingMethod as fetched from the backend. A nil Cost means free shipping.
type ShippingMethod struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Cost    *decimal.Decimal `json:"cost,omitempty"`
	Enabled bool             `json:"enabled"`
}

// ShippingZone groups the methods the backend offers for one region.
type ShippingZone struct {
	ZoneName string           `json:"zone_name"`
	Methods  []ShippingMethod `json:"methods"`
}

type PaymentMethod struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Enabled bool   `json:"enabled"`
}
