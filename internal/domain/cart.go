package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product+variant+attribute combination in the cart.
// LineTotal is always derived from UnitPrice and Quantity, never set directly.
type CartLine struct {
	CartKey            string            `json:"cart_key"`
	ProductID          int64             `json:"product_id"`
	VariationID        int64             `json:"variation_id,omitempty"` // 0 for simple products
	SelectedAttributes map[string]string `json:"selected_attributes,omitempty"`
	Quantity           int               `json:"quantity"`
	UnitPrice          decimal.Decimal   `json:"unit_price"`
	LineTotal          decimal.Decimal   `json:"line_total"`
	Currency           string            `json:"currency"`
	CategoryIDs        []int64           `json:"category_ids,omitempty"`
	OnSale             bool              `json:"on_sale,omitempty"`
}

type Cart struct {
	SessionID     string          `json:"session_id"`
	Lines         []CartLine      `json:"lines"`
	Coupon        *Coupon         `json:"coupon,omitempty"`
	TotalQuantity int             `json:"total_quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ComputeCartKey builds the stable identity for a product+variant+attribute
// combination. Attribute order must not matter.
func ComputeCartKey(productID, variationID int64, attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d", productID, variationID)
	for _, k := range keys {
		fmt.Fprintf(&b, ":%s=%s", strings.ToLower(strings.TrimSpace(k)), strings.ToLower(strings.TrimSpace(attrs[k])))
	}

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Recompute restores the cart invariants after a mutation:
// every line total equals unit price times quantity, and the cart
// aggregates are the sums over all lines. Coupon discounts are applied
// separately at read time and are never folded into these values.
func (c *Cart) Recompute() {
	totalQty := 0
	totalPrice := decimal.Zero
	for i := range c.Lines {
		line := &c.Lines[i]
		line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		totalQty += line.Quantity
		totalPrice = totalPrice.Add(line.LineTotal)
	}
	c.TotalQuantity = totalQty
	c.TotalPrice = totalPrice
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// FindLine returns the index of the line with the given cart key, or -1.
func (c *Cart) FindLine(cartKey string) int {
	for i := range c.Lines {
		if c.Lines[i].CartKey == cartKey {
			return i
		}
	}
	return -1
}

// HasSaleLine reports whether any line holds a discounted/sale product.
func (c *Cart) HasSaleLine() bool {
	for i := range c.Lines {
		if c.Lines[i].OnSale {
			return true
		}
	}
	return false
}
