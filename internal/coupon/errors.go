package coupon

import "errors"

// Business-rule rejections, mapped from backend failure reasons.
var (
	ErrEmptyCode         = errors.New("coupon code is empty")
	ErrNotFound          = errors.New("coupon code not found")
	ErrExpired           = errors.New("coupon has expired")
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	ErrMinimumNotMet     = errors.New("cart total below coupon minimum")
	ErrSaleItemsExcluded = errors.New("coupon cannot be used on sale items")
	ErrRejected          = errors.New("coupon rejected")
)
