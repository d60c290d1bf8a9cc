package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/velomart/storefront/internal/domain"
)

// ErrUnavailable marks transport-level failures (timeouts, 5xx, open breaker,
// malformed responses). Callers treat these as retryable.
var ErrUnavailable = errors.New("commerce backend unavailable")

// OrderRejectionError is a backend validation rejection of an order request,
// e.g. an unknown customer id. Not retryable without changing the request.
type OrderRejectionError struct {
	Code    string
	Message string
}

func (e *OrderRejectionError) Error() string {
	return fmt.Sprintf("order rejected: %s (%s)", e.Message, e.Code)
}

type CouponValidationLine struct {
	ProductID   int64           `json:"product_id"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	CategoryIDs []int64         `json:"category_ids,omitempty"`
}

type CouponValidationRequest struct {
	Code      string                 `json:"code"`
	CartTotal decimal.Decimal        `json:"cart_total"`
	Lines     []CouponValidationLine `json:"lines"`
}

type CouponValidationResponse struct {
	Valid               bool             `json:"valid"`
	DiscountType        string           `json:"discount_type,omitempty"`
	DiscountValue       *decimal.Decimal `json:"discount_value,omitempty"`
	AllowedCategoryIDs  []int64          `json:"allowed_category_ids,omitempty"`
	ExcludedCategoryIDs []int64          `json:"excluded_category_ids,omitempty"`
	Message             string           `json:"message,omitempty"`
}

// Client talks to the external commerce backend, the sole authority for
// products, stock, coupons, shipping rates, payment methods and orders.
// All calls go through a circuit breaker so a struggling backend does not
// pile up storefront requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*httpResult]
}

type httpResult struct {
	status int
	body   []byte
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	settings := gobreaker.Settings{
		Name:    "commerce-backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker[*httpResult](settings),
	}
}

func (c *Client) ValidateCoupon(ctx context.Context, req *CouponValidationRequest) (*CouponValidationResponse, error) {
	result, err := c.do(ctx, http.MethodPost, "/coupons/validate", req)
	if err != nil {
		return nil, err
	}

	var resp CouponValidationResponse
	if errDecode := json.Unmarshal(result.body, &resp); errDecode != nil {
		return nil, fmt.Errorf("%w: malformed coupon response: %v", ErrUnavailable, errDecode)
	}

	// A 4xx with a parseable body is a business rejection, not an outage.
	if result.status >= 400 && resp.Message == "" {
		resp.Valid = false
		resp.Message = fmt.Sprintf("coupon rejected with status %d", result.status)
	}
	return &resp, nil
}

func (c *Client) GetShippingZones(ctx context.Context) ([]domain.ShippingZone, error) {
	result, err := c.do(ctx, http.MethodGet, "/shipping-methods", nil)
	if err != nil {
		return nil, err
	}
	if result.status >= 400 {
		return nil, fmt.Errorf("%w: shipping methods returned status %d", ErrUnavailable, result.status)
	}

	var zones []domain.ShippingZone
	if errDecode := json.Unmarshal(result.body, &zones); errDecode != nil {
		return nil, fmt.Errorf("%w: malformed shipping methods response: %v", ErrUnavailable, errDecode)
	}
	return zones, nil
}

func (c *Client) GetPaymentMethods(ctx context.Context, locale string) ([]domain.PaymentMethod, error) {
	result, err := c.do(ctx, http.MethodGet, "/payment-methods?locale="+locale, nil)
	if err != nil {
		return nil, err
	}
	if result.status >= 400 {
		return nil, fmt.Errorf("%w: payment methods returned status %d", ErrUnavailable, result.status)
	}

	var methods []domain.PaymentMethod
	if errDecode := json.Unmarshal(result.body, &methods); errDecode != nil {
		return nil, fmt.Errorf("%w: malformed payment methods response: %v", ErrUnavailable, errDecode)
	}
	return methods, nil
}

func (c *Client) GetProductStock(ctx context.Context, productID int64) (*domain.ProductStock, error) {
	result, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", productID), nil)
	if err != nil {
		return nil, err
	}
	if result.status >= 400 {
		return nil, fmt.Errorf("%w: product fetch returned status %d", ErrUnavailable, result.status)
	}

	var product domain.ProductStock
	if errDecode := json.Unmarshal(result.body, &product); errDecode != nil {
		return nil, fmt.Errorf("%w: malformed product response: %v", ErrUnavailable, errDecode)
	}
	return &product, nil
}

func (c *Client) CreateOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	result, err := c.do(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		return nil, err
	}

	if result.status >= 400 {
		var rejection struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if errDecode := json.Unmarshal(result.body, &rejection); errDecode != nil || rejection.Message == "" {
			return nil, fmt.Errorf("%w: order creation returned status %d", ErrUnavailable, result.status)
		}
		return nil, &OrderRejectionError{Code: rejection.Code, Message: rejection.Message}
	}

	var order domain.OrderResult
	if errDecode := json.Unmarshal(result.body, &order); errDecode != nil {
		return nil, fmt.Errorf("%w: malformed order response: %v", ErrUnavailable, errDecode)
	}
	return &order, nil
}

// do executes one HTTP exchange through the breaker. Only transport failures
// and 5xx count as breaker failures; 4xx responses pass through to the caller.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*httpResult, error) {
	result, err := c.breaker.Execute(func() (*httpResult, error) {
		var body io.Reader
		if payload != nil {
			data, errMarshal := json.Marshal(payload)
			if errMarshal != nil {
				return nil, fmt.Errorf("failed to marshal request: %w", errMarshal)
			}
			body = bytes.NewReader(data)
		}

		req, errReq := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if errReq != nil {
			return nil, fmt.Errorf("failed to build request: %w", errReq)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, errDo := c.httpClient.Do(req)
		if errDo != nil {
			return nil, errDo
		}
		defer resp.Body.Close()

		data, errRead := io.ReadAll(resp.Body)
		if errRead != nil {
			return nil, errRead
		}

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
		}

		return &httpResult{status: resp.StatusCode, body: data}, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result, nil
}
