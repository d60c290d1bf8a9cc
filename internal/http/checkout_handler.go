package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/velomart/storefront/internal/checkout"
	"github.com/velomart/storefront/internal/currency"
	"github.com/velomart/storefront/internal/domain"
	"github.com/velomart/storefront/internal/fulfillment"
	"github.com/velomart/storefront/internal/stock"
)

// checkoutService is the slice of the orchestrator the handler drives.
type checkoutService interface {
	Evaluate(ctx context.Context, sessionID string) (*checkout.Evaluation, error)
	Submit(ctx context.Context, sessionID string, req *checkout.SubmitRequest) (*domain.OrderResult, error)
	State(sessionID string) domain.CheckoutState
	LastOrder(sessionID string) *domain.OrderResult
}

// fulfillmentService is the slice of the method resolver the handler drives.
type fulfillmentService interface {
	ShippingMethods(ctx context.Context, region string) ([]domain.ShippingMethod, error)
	PaymentMethods(ctx context.Context, locale string) ([]domain.PaymentMethod, error)
	SelectShipping(ctx context.Context, sessionID, locale string, shipping domain.ShippingMethod) (*fulfillment.Selection, error)
}

type CheckoutHandler struct {
	orchestrator checkoutService
	methods      fulfillmentService
	timeout      time.Duration
}

func NewCheckoutHandler(orchestrator checkoutService, methods fulfillmentService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		orchestrator: orchestrator,
		methods:      methods,
		timeout:      timeout,
	}
}

type SelectShippingRequestDTO struct {
	MethodID string `json:"method_id"`
	Title    string `json:"title,omitempty"`
	Cost     string `json:"cost,omitempty"`
}

type SelectionDTO struct {
	State    fulfillment.SelectionState `json:"state"`
	Shipping *domain.ShippingMethod     `json:"shipping,omitempty"`
	Payment  *domain.PaymentMethod      `json:"payment,omitempty"`
}

type SubmitRequestDTO struct {
	Billing        domain.Address `json:"billing"`
	Shipping       domain.Address `json:"shipping"`
	CustomerID     int64          `json:"customer_id,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

type SubmitResponse struct {
	State domain.CheckoutState `json:"state"`
	Order *domain.OrderResult  `json:"order"`
}

type StockBlockedResponse struct {
	Error string             `json:"error"`
	Code  string             `json:"code"`
	Lines []stock.LineStatus `json:"lines"`
}

// GetCheckout returns the current derived checkout view for the session.
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	eval, err := h.orchestrator.Evaluate(ctx, sessionID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, eval)
}

func (h *CheckoutHandler) ShippingMethods(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	region := r.URL.Query().Get("region")
	if region == "" {
		region = "Polska"
	}

	methods, err := h.methods.ShippingMethods(ctx, region)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, methods)
}

func (h *CheckoutHandler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	// No timeout wrapper: the resolver retries until the backend answers and
	// only the client disconnecting cancels the loop.
	methods, err := h.methods.PaymentMethods(r.Context(), resolveLocale(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, methods)
}

func (h *CheckoutHandler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	var req SelectShippingRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.MethodID == "" {
		respondError(w, http.StatusBadRequest, "invalid_method_id", "method_id is required")
		return
	}

	method := domain.ShippingMethod{
		ID:      req.MethodID,
		Title:   req.Title,
		Enabled: true,
	}
	if req.Cost != "" {
		cost, errCost := decimal.NewFromString(req.Cost)
		if errCost != nil {
			respondError(w, http.StatusBadRequest, "invalid_cost", "cost must be a decimal string")
			return
		}
		method.Cost = &cost
	}

	selection, err := h.methods.SelectShipping(r.Context(), sessionID, resolveLocale(r), method)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SelectionDTO{
		State:    selection.State,
		Shipping: selection.Shipping,
		Payment:  selection.Payment,
	})
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	var req SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	log.Printf("checkout submit request_id=%s session=%s", getRequestID(r.Context()), sessionID)

	order, err := h.orchestrator.Submit(ctx, sessionID, &checkout.SubmitRequest{
		Billing:        req.Billing,
		Shipping:       req.Shipping,
		CustomerID:     req.CustomerID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, SubmitResponse{
		State: domain.CheckoutStateSubmitted,
		Order: order,
	})
}

// LastOrder serves the confirmation view after a submitted checkout.
func (h *CheckoutHandler) LastOrder(w http.ResponseWriter, r *http.Request) {
	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session identifier")
		return
	}

	order := h.orchestrator.LastOrder(sessionID)
	if order == nil {
		respondError(w, http.StatusNotFound, "no_order", "no submitted order for this session")
		return
	}
	respondJSON(w, http.StatusOK, SubmitResponse{
		State: h.orchestrator.State(sessionID),
		Order: order,
	})
}

// Currency resolves the display currency for the shopper's locale.
func (h *CheckoutHandler) Currency(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currency.Resolve(resolveLocale(r)))
}

func resolveLocale(r *http.Request) string {
	if locale := r.URL.Query().Get("locale"); locale != "" {
		return locale
	}
	return r.Header.Get("Accept-Language")
}
