package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/velomart/storefront/internal/backend"
	"github.com/velomart/storefront/internal/cart"
	"github.com/velomart/storefront/internal/checkout"
	"github.com/velomart/storefront/internal/currency"
	"github.com/velomart/storefront/internal/domain"
	"github.com/velomart/storefront/internal/fulfillment"
)

// cartService is the slice of the cart store the handler drives.
type cartService interface {
	AddLine(ctx context.Context, sessionID string, line domain.CartLine) (*domain.Cart, error)
	SetQuantity(ctx context.Context, sessionID, cartKey string, qty int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, sessionID, cartKey string) (*domain.Cart, error)
	Clear(ctx context.Context, sessionID string) (*domain.Cart, error)
}

// evaluator recomputes the derived cart view after every mutation.
type evaluator interface {
	Evaluate(ctx context.Context, sessionID string) (*checkout.Evaluation, error)
}

type CartHandler struct {
	store    cartService
	checkout evaluator
	timeout  time.Duration
}

func NewCartHandler(store cartService, checkout evaluator, timeout time.Duration) *CartHandler {
	return &CartHandler{
		store:    store,
		checkout: checkout,
		timeout:  timeout,
	}
}

type AddLineRequestDTO struct {
	ProductID          int64             `json:"product_id"`
	VariationID        int64             `json:"variation_id,omitempty"`
	Quantity           int               `json:"quantity"`
	UnitPrice          decimal.Decimal   `json:"unit_price"`
	Currency           string            `json:"currency,omitempty"`
	SelectedAttributes map[string]string `json:"selected_attributes,omitempty"`
	CategoryIDs        []int64           `json:"category_ids,omitempty"`
	OnSale             bool              `json:"on_sale,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	eval, err := h.checkout.Evaluate(ctx, sessionID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, eval)
}

func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	var req AddLineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
		return
	}
	if req.UnitPrice.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_price", "unit_price must not be negative")
		return
	}

	cur := req.Currency
	if cur == "" {
		cur = currency.Resolve(r.Header.Get("Accept-Language")).Code
	}

	_, err := h.store.AddLine(ctx, sessionID, domain.CartLine{
		ProductID:          req.ProductID,
		VariationID:        req.VariationID,
		SelectedAttributes: req.SelectedAttributes,
		Quantity:           req.Quantity,
		UnitPrice:          req.UnitPrice,
		Currency:           cur,
		CategoryIDs:        req.CategoryIDs,
		OnSale:             req.OnSale,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	eval, err := h.checkout.Evaluate(ctx, sessionID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, eval)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	cartKey := chi.URLParam(r, "cart_key")
	if cartKey == "" {
		respondError(w, http.StatusBadRequest, "invalid_cart_key", "cart_key is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
		return
	}

	if _, err := h.store.SetQuantity(ctx, sessionID, cartKey, req.Quantity); err != nil {
		handleDomainError(w, err)
		return
	}

	eval, err := h.checkout.Evaluate(ctx, sessionID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, eval)
}

func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	cartKey := chi.URLParam(r, "cart_key")
	if cartKey == "" {
		respondError(w, http.StatusBadRequest, "invalid_cart_key", "cart_key is required")
		return
	}

	if _, err := h.store.RemoveLine(ctx, sessionID, cartKey); err != nil {
		handleDomainError(w, err)
		return
	}

	eval, err := h.checkout.Evaluate(ctx, sessionID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, eval)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	cleared, err := h.store.Clear(ctx, sessionID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cleared)
}

func getSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value("session_id").(string); ok {
		return sessionID
	}
	return ""
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value("request_id").(string); ok {
		return requestID
	}
	return ""
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

// handleDomainError converts domain errors to HTTP status codes.
func handleDomainError(w http.ResponseWriter, err error) {
	var blocked *checkout.StockBlockedError
	var rejection *backend.OrderRejectionError

	switch {
	case errors.As(err, &blocked):
		respondJSON(w, http.StatusConflict, StockBlockedResponse{
			Error: blocked.Error(),
			Code:  "insufficient_stock",
			Lines: blocked.Lines,
		})
	case errors.As(err, &rejection):
		respondError(w, http.StatusUnprocessableEntity, rejection.Code, rejection.Message)
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrMethodUnresolved):
		respondError(w, http.StatusConflict, "method_unresolved", err.Error())
	case errors.Is(err, fulfillment.ErrNoPaymentMethods):
		respondError(w, http.StatusConflict, "no_payment_methods", err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, backend.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "backend_unavailable", "commerce backend unavailable, try again")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Printf("unhandled error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
