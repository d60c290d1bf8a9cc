package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/velomart/storefront/internal/backend"
	"github.com/velomart/storefront/internal/coupon"
	"github.com/velomart/storefront/internal/domain"
)

// couponService is the slice of the coupon engine the handler drives.
type couponService interface {
	Apply(ctx context.Context, sessionID, code string, cart *domain.Cart) (*domain.Cart, *domain.Coupon, error)
	Remove(ctx context.Context, sessionID string) (*domain.Cart, error)
}

type cartGetter interface {
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)
}

type CouponHandler struct {
	engine  couponService
	store   cartGetter
	timeout time.Duration
}

func NewCouponHandler(engine couponService, store cartGetter, timeout time.Duration) *CouponHandler {
	return &CouponHandler{
		engine:  engine,
		store:   store,
		timeout: timeout,
	}
}

type ApplyCouponRequestDTO struct {
	Code string `json:"code"`
}

// CouponResponse carries the coupon outcome plus the observable state the
// storefront renders: coupon-applied on success, coupon-rejected with a
// machine-readable code otherwise.
type CouponResponse struct {
	State           domain.CheckoutState `json:"state"`
	Cart            *domain.Cart         `json:"cart,omitempty"`
	DiscountedTotal decimal.Decimal      `json:"discounted_total"`
	Code            string               `json:"code,omitempty"`
	Error           string               `json:"error,omitempty"`
}

func (h *CouponHandler) Apply(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	var req ApplyCouponRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	current, err := h.store.Get(ctx, sessionID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	updated, _, err := h.engine.Apply(ctx, sessionID, req.Code, current)
	if err != nil {
		if code, rejected := couponRejectionCode(err); rejected {
			// Rejections keep any previously applied coupon in place; the
			// response reflects the untouched cart.
			respondJSON(w, http.StatusUnprocessableEntity, CouponResponse{
				State:           domain.CheckoutStateCouponRejected,
				Cart:            current,
				DiscountedTotal: coupon.DiscountedTotal(current),
				Code:            code,
				Error:           err.Error(),
			})
			return
		}
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CouponResponse{
		State:           domain.CheckoutStateCouponApplied,
		Cart:            updated,
		DiscountedTotal: coupon.DiscountedTotal(updated),
	})
}

func (h *CouponHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	updated, err := h.engine.Remove(ctx, sessionID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CouponResponse{
		State:           domain.CheckoutStateIdle,
		Cart:            updated,
		DiscountedTotal: coupon.DiscountedTotal(updated),
	})
}

// couponRejectionCode maps coupon rejection kinds to wire codes. Transport
// failures are not rejections and fall through to handleDomainError.
func couponRejectionCode(err error) (string, bool) {
	switch {
	case errors.Is(err, backend.ErrUnavailable):
		return "", false
	case errors.Is(err, coupon.ErrEmptyCode):
		return "empty_code", true
	case errors.Is(err, coupon.ErrNotFound):
		return "not_found", true
	case errors.Is(err, coupon.ErrExpired):
		return "expired", true
	case errors.Is(err, coupon.ErrUsageLimitReached):
		return "usage_limit_reached", true
	case errors.Is(err, coupon.ErrMinimumNotMet):
		return "minimum_not_met", true
	case errors.Is(err, coupon.ErrSaleItemsExcluded):
		return "sale_items_excluded", true
	case errors.Is(err, coupon.ErrRejected):
		return "rejected", true
	}
	return "", false
}
