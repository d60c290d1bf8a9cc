package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/velomart/storefront/internal/backend"
	"github.com/velomart/storefront/internal/coupon"
	"github.com/velomart/storefront/internal/domain"
	"github.com/velomart/storefront/internal/fulfillment"
	"github.com/velomart/storefront/internal/stock"
	"github.com/velomart/storefront/internal/submissions"
)

// Consumer-side slices of the collaborators the orchestrator drives.

type cartStore interface {
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)
	Clear(ctx context.Context, sessionID string) (*domain.Cart, error)
}

type couponEngine interface {
	ReconcileOnCartChange(ctx context.Context, cart *domain.Cart) (*domain.Cart, bool, error)
}

type methodSelection interface {
	Selection(sessionID string) fulfillment.Selection
	Reset(sessionID string)
}

type backendClient interface {
	GetProductStock(ctx context.Context, productID int64) (*domain.ProductStock, error)
	CreateOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error)
}

type eventPublisher interface {
	PublishOrderSubmitted(ctx context.Context, sessionID string, order *domain.OrderResult) error
}

// Evaluation is the full derived state recomputed after every cart mutation.
// Callers get aggregates, per-line stock flags and coupon validity in one
// synchronous pass and never observe a stale intermediate state.
type Evaluation struct {
	Cart            *domain.Cart         `json:"cart"`
	DiscountedTotal decimal.Decimal      `json:"discounted_total"`
	StockStatuses   []stock.LineStatus   `json:"stock_statuses"`
	CouponRemoved   bool                 `json:"coupon_removed,omitempty"`
	State           domain.CheckoutState `json:"state"`
}

type SubmitRequest struct {
	Billing    domain.Address
	Shipping   domain.Address
	CustomerID int64
	// IdempotencyKey is kept across explicit user retries of the same
	// submission; a fresh one is generated when absent.
	IdempotencyKey string
}

type sessionState struct {
	state     domain.CheckoutState
	lastOrder *domain.OrderResult
}

// Orchestrator sequences cart validity, coupon re-validation, fulfillment
// confirmation and order submission. The backend stays the sole source of
// truth for order existence; a transport failure never assumes a partial
// order client-side.
type Orchestrator struct {
	store     cartStore
	coupons   couponEngine
	methods   methodSelection
	backend   backendClient
	log       submissions.RepoInterface
	publisher eventPublisher

	mu       sync.Mutex
	sessions map[string]*sessionState
}

func NewOrchestrator(
	store cartStore,
	coupons couponEngine,
	methods methodSelection,
	backend backendClient,
	submissionLog submissions.RepoInterface,
	publisher eventPublisher,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		coupons:   coupons,
		methods:   methods,
		backend:   backend,
		log:       submissionLog,
		publisher: publisher,
		sessions:  make(map[string]*sessionState),
	}
}

// Evaluate runs the reactive recompute pass: coupon reconciliation against
// the current cart, per-line stock flags against fresh backend snapshots and
// the discounted total. Invoked after every mutation and before submission.
func (o *Orchestrator) Evaluate(ctx context.Context, sessionID string) (*Evaluation, error) {
	cart, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	cart, couponRemoved, err := o.coupons.ReconcileOnCartChange(ctx, cart)
	if err != nil {
		return nil, err
	}

	statuses, err := o.stockStatuses(ctx, cart)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{
		Cart:            cart,
		DiscountedTotal: coupon.DiscountedTotal(cart),
		StockStatuses:   statuses,
		CouponRemoved:   couponRemoved,
		State:           o.deriveState(sessionID, cart, statuses),
	}
	return eval, nil
}

// Submit drives the linear gate and the order-creation call. Every step
// short-circuits; the cart is only cleared after the backend accepted the
// order.
func (o *Orchestrator) Submit(ctx context.Context, sessionID string, req *SubmitRequest) (*domain.OrderResult, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}

	// A retry of an already accepted submission returns the recorded result
	// instead of creating a second order.
	if recorded, errGet := o.log.GetByIdempotencyKey(ctx, key); errGet == nil {
		log.Printf("duplicate submission for idempotency_key=%s, returning recorded order %d", key, recorded.OrderID)
		return &domain.OrderResult{
			ID:       recorded.OrderID,
			OrderKey: recorded.OrderKey,
			Status:   recorded.Status,
			Total:    recorded.Total,
			Currency: recorded.Currency,
		}, nil
	} else if !errors.Is(errGet, submissions.ErrSubmissionNotFound) {
		return nil, fmt.Errorf("failed to check submission log: %w", errGet)
	}

	eval, err := o.Evaluate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if errGate := o.gate(sessionID, eval); errGate != nil {
		return nil, errGate
	}

	selection := o.methods.Selection(sessionID)
	orderReq := buildOrderRequest(eval.Cart, &selection, req, key)

	o.setState(sessionID, domain.CheckoutStateSubmitting, nil)

	order, errCreate := o.backend.CreateOrder(ctx, orderReq)
	if errCreate != nil {
		// rejection or transport error: the cart stays untouched either way
		o.setState(sessionID, domain.CheckoutStateSubmissionFailed, nil)
		return nil, errCreate
	}

	if errRecord := o.log.Record(ctx, &submissions.Submission{
		IdempotencyKey: key,
		SessionID:      sessionID,
		OrderID:        order.ID,
		OrderKey:       order.OrderKey,
		Status:         order.Status,
		Total:          order.Total,
		Currency:       order.Currency,
	}); errRecord != nil {
		log.Printf("failed to record submission for order %d: %v", order.ID, errRecord)
	}

	if _, errClear := o.store.Clear(ctx, sessionID); errClear != nil {
		log.Printf("failed to clear cart after order %d: %v", order.ID, errClear)
	}
	o.methods.Reset(sessionID)

	if o.publisher != nil {
		if errPublish := o.publisher.PublishOrderSubmitted(ctx, sessionID, order); errPublish != nil {
			log.Printf("failed to publish order-submitted event for order %d: %v", order.ID, errPublish)
		}
	}

	o.setState(sessionID, domain.CheckoutStateSubmitted, order)
	return order, nil
}

// State returns the session's observable checkout state.
func (o *Orchestrator) State(sessionID string) domain.CheckoutState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[sessionID]; ok {
		return s.state
	}
	return domain.CheckoutStateIdle
}

// LastOrder returns the retained order result for the confirmation view.
func (o *Orchestrator) LastOrder(sessionID string) *domain.OrderResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[sessionID]; ok {
		return s.lastOrder
	}
	return nil
}

func (o *Orchestrator) gate(sessionID string, eval *Evaluation) error {
	if eval.Cart.IsEmpty() {
		return ErrEmptyCart
	}

	var blocked []stock.LineStatus
	for _, status := range eval.StockStatuses {
		if status.Insufficient {
			blocked = append(blocked, status)
		}
	}
	if len(blocked) > 0 {
		o.setState(sessionID, domain.CheckoutStateStockBlocked, nil)
		return &StockBlockedError{Lines: blocked}
	}

	selection := o.methods.Selection(sessionID)
	if selection.State != fulfillment.StatePaymentResolved ||
		selection.Shipping == nil || selection.Payment == nil || !selection.Payment.Enabled {
		o.setState(sessionID, domain.CheckoutStateMethodUnresolved, nil)
		return ErrMethodUnresolved
	}
	return nil
}

func (o *Orchestrator) stockStatuses(ctx context.Context, cart *domain.Cart) ([]stock.LineStatus, error) {
	products := make(map[int64]*domain.ProductStock)
	statuses := make([]stock.LineStatus, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			fetched, err := o.backend.GetProductStock(ctx, line.ProductID)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch stock for product %d: %w", line.ProductID, err)
			}
			products[line.ProductID] = fetched
			product = fetched
		}
		statuses = append(statuses, stock.Status(line, *product))
	}
	return statuses, nil
}

func (o *Orchestrator) deriveState(sessionID string, cart *domain.Cart, statuses []stock.LineStatus) domain.CheckoutState {
	for _, status := range statuses {
		if status.Insufficient {
			return domain.CheckoutStateStockBlocked
		}
	}
	if !cart.IsEmpty() {
		selection := o.methods.Selection(sessionID)
		if selection.State != fulfillment.StatePaymentResolved {
			return domain.CheckoutStateMethodUnresolved
		}
	}
	return o.State(sessionID)
}

func (o *Orchestrator) setState(sessionID string, state domain.CheckoutState, order *domain.OrderResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[sessionID]
	if !ok {
		s = &sessionState{}
		o.sessions[sessionID] = s
	}
	s.state = state
	if order != nil {
		s.lastOrder = order
	}
}

func buildOrderRequest(cart *domain.Cart, selection *fulfillment.Selection, req *SubmitRequest, idempotencyKey string) *domain.OrderRequest {
	items := make([]domain.OrderLineItem, len(cart.Lines))
	for i, line := range cart.Lines {
		items[i] = domain.OrderLineItem{
			ProductID:   line.ProductID,
			VariationID: line.VariationID,
			Quantity:    line.Quantity,
			Subtotal:    line.LineTotal,
			Total:       line.LineTotal,
		}
	}

	shippingTotal := decimal.Zero
	if selection.Shipping.Cost != nil {
		shippingTotal = *selection.Shipping.Cost
	}

	orderReq := &domain.OrderRequest{
		Billing:  req.Billing,
		Shipping: req.Shipping,
		ShippingLine: domain.ShippingLine{
			MethodID:    selection.Shipping.ID,
			MethodTitle: selection.Shipping.Title,
			Total:       shippingTotal,
		},
		PaymentMethodID: selection.Payment.ID,
		LineItems:       items,
		CustomerID:      req.CustomerID,
		IdempotencyKey:  idempotencyKey,
	}
	if cart.Coupon != nil {
		orderReq.CouponCode = cart.Coupon.Code
	}
	return orderReq
}

// ErrIsRetryable reports whether a submission failure may be re-triggered
// as-is. Only the shopper re-triggers it; the orchestrator never retries the
// non-idempotent order creation on its own.
func ErrIsRetryable(err error) bool {
	return errors.Is(err, backend.ErrUnavailable)
}
