package stock

import (
	"strings"

	"github.com/velomart/storefront/internal/domain"
)

// LineStatus is the derived stock fact for one cart line, consumed by the
// checkout gate and by the quantity-increase clamp in the UI layer.
type LineStatus struct {
	CartKey      string `json:"cart_key"`
	Available    int    `json:"available"`
	Insufficient bool   `json:"insufficient"`
}

// ComputeAvailable returns the quantity currently purchasable for the line's
// selected variant. Pure; re-run whenever cart contents or the backend
// snapshot change.
//
// Resolution order for variant-tracked products: the snapshot whose attributes
// match the line's selection, then the product-level quantity, then the sum of
// all variant quantities. Simple products use the product-level quantity,
// defaulting to 0 when absent.
func ComputeAvailable(line domain.CartLine, product domain.ProductStock) int {
	if !product.HasVariants() {
		return productLevel(product)
	}

	if v := matchVariant(line.SelectedAttributes, product.Variants); v != nil {
		if v.StockQuantity != nil && *v.StockQuantity >= 0 {
			return *v.StockQuantity
		}
		// variant found but not stock-tracked
		return productLevel(product)
	}

	if product.StockQuantity != nil {
		return *product.StockQuantity
	}

	// last resort: total across variants
	sum := 0
	for i := range product.Variants {
		if q := product.Variants[i].StockQuantity; q != nil && *q > 0 {
			sum += *q
		}
	}
	return sum
}

// Status computes the per-line stock fact used to gate checkout.
func Status(line domain.CartLine, product domain.ProductStock) LineStatus {
	available := ComputeAvailable(line, product)
	return LineStatus{
		CartKey:      line.CartKey,
		Available:    available,
		Insufficient: available <= 0 || line.Quantity > available,
	}
}

// MaxIncrease is the highest quantity a quantity-increase action may set.
func MaxIncrease(line domain.CartLine, product domain.ProductStock) int {
	available := ComputeAvailable(line, product)
	if available < 1 {
		return 0
	}
	return available
}

func matchVariant(selected map[string]string, variants []domain.VariantStockSnapshot) *domain.VariantStockSnapshot {
	want := normalizeAttrs(selected)
	for i := range variants {
		if attrsEqual(want, normalizeAttrs(variants[i].Attributes)) {
			return &variants[i]
		}
	}
	return nil
}

// Attribute names and values are compared case and whitespace insensitively,
// matching how the backend serializes variation attributes.
func normalizeAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[normalize(k)] = normalize(v)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func attrsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func productLevel(product domain.ProductStock) int {
	if product.StockQuantity != nil && *product.StockQuantity >= 0 {
		return *product.StockQuantity
	}
	return 0
}
