package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/velomart/storefront/internal/domain"
)

var (
	// ErrNoPaymentMethods is terminal: an empty enabled payment list after a
	// successful fetch must block submission, never be silently defaulted.
	ErrNoPaymentMethods   = errors.New("no payment method available")
	ErrNoShippingSelected = errors.New("no shipping method selected")
)

type SelectionState string

const (
	StateUnselected      SelectionState = "UNSELECTED"
	StateShippingChosen  SelectionState = "SHIPPING_CHOSEN"
	StatePaymentResolved SelectionState = "PAYMENT_RESOLVED"
)

const (
	// LockerMethodID is the pickup-point option offered alongside whatever the
	// backend returns for the region.
	LockerMethodID = "paczkomaty_inpost"

	codPaymentKey    = "cod"
	onlinePaymentKey = "przelewy24"
)

// paymentKeyByShipping maps shipping method ids to the canonical payment key
// they allow. Cash-on-delivery couriers take COD, everything else takes the
// standard online payment.
var paymentKeyByShipping = map[string]string{
	"kurier_gls_pobranie": codPaymentKey,
	"kurier_dpd_pobranie": codPaymentKey,
	"kurier_gls":          onlinePaymentKey,
	"kurier_dpd":          onlinePaymentKey,
	"paczkomaty_inpost":   onlinePaymentKey,
	"odbior_osobisty":     onlinePaymentKey,
}

func paymentKeyFor(shippingID string) string {
	if key, ok := paymentKeyByShipping[shippingID]; ok {
		return key
	}
	// identity fallback for unmapped ids
	return shippingID
}

// methodsClient is the backend slice the resolver consumes.
type methodsClient interface {
	GetShippingZones(ctx context.Context) ([]domain.ShippingZone, error)
	GetPaymentMethods(ctx context.Context, locale string) ([]domain.PaymentMethod, error)
}

// WidgetLoader loads the third-party pickup-point selection widget.
type WidgetLoader func(ctx context.Context) error

// Selection is the per-session {shipping, payment} pair the orchestrator gates on.
type Selection struct {
	State        SelectionState
	Shipping     *domain.ShippingMethod
	Payment      *domain.PaymentMethod
	widgetLoaded bool
}

// Resolver drives the Unselected → ShippingChosen → PaymentResolved state
// machine per session. Selecting a shipping method (including re-selecting)
// deterministically resolves the single allowed payment method.
type Resolver struct {
	backend       methodsClient
	loadWidget    WidgetLoader
	retryInterval time.Duration

	mu         sync.Mutex
	selections map[string]*Selection
}

func NewResolver(backend methodsClient, loadWidget WidgetLoader, retryInterval time.Duration) *Resolver {
	return &Resolver{
		backend:       backend,
		loadWidget:    loadWidget,
		retryInterval: retryInterval,
		selections:    make(map[string]*Selection),
	}
}

// ShippingMethods returns the enabled methods for the shopper's region plus
// the standing locker option when the backend did not list it.
func (r *Resolver) ShippingMethods(ctx context.Context, region string) ([]domain.ShippingMethod, error) {
	zones, err := r.backend.GetShippingZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shipping methods: %w", err)
	}

	var methods []domain.ShippingMethod
	hasLocker := false
	for _, zone := range zones {
		if zone.ZoneName != region {
			continue
		}
		for _, method := range zone.Methods {
			if !method.Enabled {
				continue
			}
			if method.ID == LockerMethodID {
				hasLocker = true
			}
			methods = append(methods, method)
		}
	}

	if !hasLocker {
		methods = append(methods, domain.ShippingMethod{
			ID:      LockerMethodID,
			Title:   "Paczkomaty InPost",
			Enabled: true,
		})
	}
	return methods, nil
}

// PaymentMethods fetches the enabled payment methods for the locale, retrying
// on a fixed interval until the fetch succeeds. Checkout cannot proceed
// without this list, so only context cancellation stops the retry loop.
func (r *Resolver) PaymentMethods(ctx context.Context, locale string) ([]domain.PaymentMethod, error) {
	for {
		methods, err := r.backend.GetPaymentMethods(ctx, locale)
		if err == nil {
			enabled := make([]domain.PaymentMethod, 0, len(methods))
			for _, m := range methods {
				if m.Enabled {
					enabled = append(enabled, m)
				}
			}
			if len(enabled) == 0 {
				return nil, ErrNoPaymentMethods
			}
			return enabled, nil
		}

		log.Printf("payment method fetch failed, retrying in %v: %v", r.retryInterval, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryInterval):
		}
	}
}

// SelectShipping enters (or re-enters) ShippingChosen and auto-selects the
// payment method allowed for the chosen shipping method, regardless of any
// prior selection. Choosing the locker method loads the point-selection
// widget on first use; the load is cached for the session.
func (r *Resolver) SelectShipping(ctx context.Context, sessionID, locale string, shipping domain.ShippingMethod) (*Selection, error) {
	methods, err := r.PaymentMethods(ctx, locale)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	sel, ok := r.selections[sessionID]
	if !ok {
		sel = &Selection{State: StateUnselected}
		r.selections[sessionID] = sel
	}
	sel.State = StateShippingChosen
	sel.Shipping = &shipping
	sel.Payment = nil
	widgetNeeded := shipping.ID == LockerMethodID && !sel.widgetLoaded
	r.mu.Unlock()

	if widgetNeeded && r.loadWidget != nil {
		if errLoad := r.loadWidget(ctx); errLoad != nil {
			return nil, fmt.Errorf("failed to load pickup point widget: %w", errLoad)
		}
		r.mu.Lock()
		sel.widgetLoaded = true
		r.mu.Unlock()
	}

	key := paymentKeyFor(shipping.ID)
	var resolved *domain.PaymentMethod
	for i := range methods {
		if methods[i].ID == key {
			resolved = &methods[i]
			break
		}
	}
	if resolved == nil {
		return nil, ErrNoPaymentMethods
	}

	r.mu.Lock()
	sel.Payment = resolved
	sel.State = StatePaymentResolved
	snapshot := *sel
	r.mu.Unlock()

	return &snapshot, nil
}

// Selection returns the current per-session state; Unselected when the
// session has not picked a shipping method yet.
func (r *Resolver) Selection(sessionID string) Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sel, ok := r.selections[sessionID]; ok {
		return *sel
	}
	return Selection{State: StateUnselected}
}

// Reset drops the session's selection, e.g. after a submitted order.
func (r *Resolver) Reset(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.selections, sessionID)
}
