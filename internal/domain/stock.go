package domain

// VariantStockSnapshot is the backend's stock view of a single variant.
// A nil StockQuantity means the variant is not stock-tracked and the
// product-level quantity applies.
type VariantStockSnapshot struct {
	VariationID   int64             `json:"variation_id"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	StockQuantity *int              `json:"stock_quantity"`
}

// ProductStock is the stock-relevant part of a product detail fetch.
// Ephemeral: fetched per product, never persisted across sessions.
type ProductStock struct {
	ProductID     int64                  `json:"product_id"`
	StockQuantity *int                   `json:"stock_quantity"`
	Variants      []VariantStockSnapshot `json:"variants,omitempty"`
}

func (p *ProductStock) HasVariants() bool {
	return len(p.Variants) > 0
}
