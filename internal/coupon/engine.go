package coupon

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/velomart/storefront/internal/backend"
	"github.com/velomart/storefront/internal/domain"
)

// validator is the backend coupon-validation contract the engine consumes.
type validator interface {
	ValidateCoupon(ctx context.Context, req *backend.CouponValidationRequest) (*backend.CouponValidationResponse, error)
}

// couponStore is the slice of the cart store the engine mutates.
type couponStore interface {
	SetCoupon(ctx context.Context, sessionID string, coupon *domain.Coupon) (*domain.Cart, error)
	ClearCoupon(ctx context.Context, sessionID string) (*domain.Cart, error)
}

type Engine struct {
	backend validator
	store   couponStore
}

func NewEngine(backend validator, store couponStore) *Engine {
	return &Engine{
		backend: backend,
		store:   store,
	}
}

// Validate checks the code against the cart and the backend coupon rules.
// Locally detectable violations are rejected before any network call so the
// shopper always sees a consistent message. Transport errors surface as
// backend.ErrUnavailable and never touch an already applied coupon.
func (e *Engine) Validate(ctx context.Context, code string, cart *domain.Cart) (*domain.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	if cart.HasSaleLine() {
		return nil, ErrSaleItemsExcluded
	}

	req := &backend.CouponValidationRequest{
		Code:      code,
		CartTotal: cart.TotalPrice,
		Lines:     make([]backend.CouponValidationLine, len(cart.Lines)),
	}
	for i, line := range cart.Lines {
		req.Lines[i] = backend.CouponValidationLine{
			ProductID:   line.ProductID,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			CategoryIDs: line.CategoryIDs,
		}
	}

	resp, err := e.backend.ValidateCoupon(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("coupon validation failed: %w", err)
	}

	if !resp.Valid {
		return nil, rejectionError(resp.Message)
	}

	terms := &domain.Coupon{
		Code:                code,
		DiscountType:        domain.DiscountType(resp.DiscountType),
		AllowedCategoryIDs:  resp.AllowedCategoryIDs,
		ExcludedCategoryIDs: resp.ExcludedCategoryIDs,
	}
	if resp.DiscountValue != nil {
		terms.DiscountValue = *resp.DiscountValue
	}
	return terms, nil
}

// Apply validates the code and attaches the resulting terms to the cart.
func (e *Engine) Apply(ctx context.Context, sessionID, code string, cart *domain.Cart) (*domain.Cart, *domain.Coupon, error) {
	terms, err := e.Validate(ctx, code, cart)
	if err != nil {
		return nil, nil, err
	}

	updated, errSet := e.store.SetCoupon(ctx, sessionID, terms)
	if errSet != nil {
		return nil, nil, fmt.Errorf("failed to store coupon: %w", errSet)
	}
	return updated, terms, nil
}

func (e *Engine) Remove(ctx context.Context, sessionID string) (*domain.Cart, error) {
	return e.store.ClearCoupon(ctx, sessionID)
}

// ReconcileOnCartChange runs after every cart mutation. When the applied
// coupon is no longer eligible for the remaining lines it is removed
// automatically; the returned flag tells the caller to announce a consistency
// correction rather than a validation error.
func (e *Engine) ReconcileOnCartChange(ctx context.Context, cart *domain.Cart) (*domain.Cart, bool, error) {
	if cart.Coupon == nil {
		return cart, false, nil
	}
	if cart.Coupon.EligibleFor(cart) {
		return cart, false, nil
	}

	log.Printf("coupon %s no longer eligible for cart %s, removing", cart.Coupon.Code, cart.SessionID)
	updated, err := e.store.ClearCoupon(ctx, cart.SessionID)
	if err != nil {
		return cart, false, fmt.Errorf("failed to remove ineligible coupon: %w", err)
	}
	return updated, true, nil
}

// DiscountedTotal applies the cart's coupon to its total, never below zero.
// Line totals stay untouched; the discount lives only in this derived value.
func DiscountedTotal(cart *domain.Cart) decimal.Decimal {
	if cart.Coupon == nil {
		return cart.TotalPrice
	}
	return cart.TotalPrice.Sub(cart.Coupon.Discount(cart.TotalPrice))
}

// Backend failure reasons map to distinct error kinds so the UI can show
// specific messages. Unknown reasons fall through to the generic rejection.
func rejectionError(message string) error {
	kind := ErrRejected
	switch message {
	case "not_found":
		kind = ErrNotFound
	case "expired":
		kind = ErrExpired
	case "usage_limit_reached":
		kind = ErrUsageLimitReached
	case "minimum_not_met":
		kind = ErrMinimumNotMet
	case "sale_items_excluded":
		kind = ErrSaleItemsExcluded
	}
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
