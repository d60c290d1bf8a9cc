package domain

import "github.com/shopspring/decimal"

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

type Coupon struct {
	Code                string          `json:"code"`
	DiscountType        DiscountType    `json:"discount_type"`
	DiscountValue       decimal.Decimal `json:"discount_value"`
	AllowedCategoryIDs  []int64         `json:"allowed_category_ids,omitempty"`
	ExcludedCategoryIDs []int64         `json:"excluded_category_ids,omitempty"`
}

// Discount computes the discount amount against the given cart total.
func (c *Coupon) Discount(total decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercent:
		discount = total.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(total) {
		return total
	}
	return discount
}

// EligibleFor reports whether the coupon may stay applied to the cart.
// A coupon restricted to categories needs at least one line whose
// categories intersect the allowed set; an empty cart disqualifies any coupon.
func (c *Coupon) EligibleFor(cart *Cart) bool {
	if cart.IsEmpty() {
		return false
	}
	if len(c.AllowedCategoryIDs) == 0 {
		return true
	}
	allowed := make(map[int64]struct{}, len(c.AllowedCategoryIDs))
	for _, id := range c.AllowedCategoryIDs {
		allowed[id] = struct{}{}
	}
	for i := range cart.Lines {
		for _, id := range cart.Lines[i].CategoryIDs {
			if _, ok := allowed[id]; ok {
				return true
			}
		}
	}
	return false
}
