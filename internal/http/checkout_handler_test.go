package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/velomart/storefront/internal/checkout"
	"github.com/velomart/storefront/internal/domain"
	"github.com/velomart/storefront/internal/fulfillment"
	"github.com/velomart/storefront/internal/stock"
)

type orchestratorMock struct {
	eval      *checkout.Evaluation
	evalErr   error
	order     *domain.OrderResult
	submitErr error
	state     domain.CheckoutState
	lastReq   *checkout.SubmitRequest
}

func (m *orchestratorMock) Evaluate(context.Context, string) (*checkout.Evaluation, error) {
	if m.evalErr != nil {
		return nil, m.evalErr
	}
	return m.eval, nil
}

func (m *orchestratorMock) Submit(_ context.Context, _ string, req *checkout.SubmitRequest) (*domain.OrderResult, error) {
	m.lastReq = req
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return m.order, nil
}

func (m *orchestratorMock) State(string) domain.CheckoutState { return m.state }
func (m *orchestratorMock) LastOrder(string) *domain.OrderResult {
	return m.order
}

type methodsMock struct {
	shipping  []domain.ShippingMethod
	payment   []domain.PaymentMethod
	selection *fulfillment.Selection
	err       error
}

func (m *methodsMock) ShippingMethods(context.Context, string) ([]domain.ShippingMethod, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.shipping, nil
}

func (m *methodsMock) PaymentMethods(context.Context, string) ([]domain.PaymentMethod, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.payment, nil
}

func (m *methodsMock) SelectShipping(context.Context, string, string, domain.ShippingMethod) (*fulfillment.Selection, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.selection, nil
}

func TestShippingMethods_Success(t *testing.T) {
	methods := &methodsMock{shipping: []domain.ShippingMethod{
		{ID: "kurier_gls", Title: "Kurier GLS", Enabled: true},
		{ID: "paczkomaty_inpost", Title: "Paczkomaty InPost", Enabled: true},
	}}
	handler := NewCheckoutHandler(&orchestratorMock{}, methods, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("GET", "/?region=Polska", nil))

	handler.ShippingMethods(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}

	var response []domain.ShippingMethod
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response) != 2 {
		t.Errorf("Expected 2 methods, got %d", len(response))
	}
}

func TestPaymentMethods_NoneAvailable(t *testing.T) {
	methods := &methodsMock{err: fulfillment.ErrNoPaymentMethods}
	handler := NewCheckoutHandler(&orchestratorMock{}, methods, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("GET", "/", nil))

	handler.PaymentMethods(recorder, request)

	if recorder.Code != http.StatusConflict {
		t.Errorf("Expected status code %d, got %d", http.StatusConflict, recorder.Code)
	}
}

func TestSelectShipping_ResolvesPayment(t *testing.T) {
	methods := &methodsMock{selection: &fulfillment.Selection{
		State:    fulfillment.StatePaymentResolved,
		Shipping: &domain.ShippingMethod{ID: "paczkomaty_inpost", Title: "Paczkomaty InPost", Enabled: true},
		Payment:  &domain.PaymentMethod{ID: "przelewy24", Title: "Przelewy24", Enabled: true},
	}}
	handler := NewCheckoutHandler(&orchestratorMock{}, methods, 5*time.Second)

	body, _ := json.Marshal(SelectShippingRequestDTO{MethodID: "paczkomaty_inpost", Cost: "12.99"})
	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("POST", "/", bytes.NewReader(body)))

	handler.SelectShipping(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}

	var response SelectionDTO
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.State != fulfillment.StatePaymentResolved {
		t.Errorf("Expected state PAYMENT_RESOLVED, got %s", response.State)
	}
	if response.Payment == nil || response.Payment.ID != "przelewy24" {
		t.Errorf("Expected payment przelewy24, got %+v", response.Payment)
	}
}

func TestSelectShipping_InvalidCost(t *testing.T) {
	handler := NewCheckoutHandler(&orchestratorMock{}, &methodsMock{}, 5*time.Second)

	body, _ := json.Marshal(SelectShippingRequestDTO{MethodID: "kurier_gls", Cost: "abc"})
	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("POST", "/", bytes.NewReader(body)))

	handler.SelectShipping(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

func TestSubmit_Success(t *testing.T) {
	orchestrator := &orchestratorMock{order: &domain.OrderResult{
		ID:       1001,
		OrderKey: "wc_order_abc",
		Status:   "processing",
		Total:    decimal.NewFromFloat(100.00),
		Currency: "PLN",
	}}
	handler := NewCheckoutHandler(orchestrator, &methodsMock{}, 5*time.Second)

	body, _ := json.Marshal(SubmitRequestDTO{
		Billing:        domain.Address{FirstName: "Jan", City: "Warszawa"},
		IdempotencyKey: "key-1",
	})
	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("POST", "/", bytes.NewReader(body)))

	handler.Submit(recorder, request)

	if recorder.Code != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, recorder.Code)
	}
	if orchestrator.lastReq == nil || orchestrator.lastReq.IdempotencyKey != "key-1" {
		t.Errorf("Expected idempotency key propagated, got %+v", orchestrator.lastReq)
	}

	var response SubmitResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.State != domain.CheckoutStateSubmitted {
		t.Errorf("Expected state submitted, got %s", response.State)
	}
	if response.Order.ID != 1001 {
		t.Errorf("Expected order id 1001, got %d", response.Order.ID)
	}
}

func TestSubmit_EmptyCart(t *testing.T) {
	orchestrator := &orchestratorMock{submitErr: checkout.ErrEmptyCart}
	handler := NewCheckoutHandler(orchestrator, &methodsMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("POST", "/", bytes.NewReader([]byte("{}"))))

	handler.Submit(recorder, request)

	if recorder.Code != http.StatusConflict {
		t.Errorf("Expected status code %d, got %d", http.StatusConflict, recorder.Code)
	}

	var response ErrorResponse
	json.NewDecoder(recorder.Body).Decode(&response)
	if response.Code != "empty_cart" {
		t.Errorf("Expected code empty_cart, got %s", response.Code)
	}
}

func TestSubmit_StockBlocked(t *testing.T) {
	orchestrator := &orchestratorMock{submitErr: &checkout.StockBlockedError{
		Lines: []stock.LineStatus{{CartKey: "k1", Available: 2, Insufficient: true}},
	}}
	handler := NewCheckoutHandler(orchestrator, &methodsMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("POST", "/", bytes.NewReader([]byte("{}"))))

	handler.Submit(recorder, request)

	if recorder.Code != http.StatusConflict {
		t.Errorf("Expected status code %d, got %d", http.StatusConflict, recorder.Code)
	}

	var response StockBlockedResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Code != "insufficient_stock" {
		t.Errorf("Expected code insufficient_stock, got %s", response.Code)
	}
	if len(response.Lines) != 1 || response.Lines[0].CartKey != "k1" {
		t.Errorf("Expected offending line k1, got %+v", response.Lines)
	}
}

func TestLastOrder_NotFound(t *testing.T) {
	handler := NewCheckoutHandler(&orchestratorMock{}, &methodsMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("GET", "/", nil))

	handler.LastOrder(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected status code %d, got %d", http.StatusNotFound, recorder.Code)
	}
}

func TestCurrency_ResolvesLocale(t *testing.T) {
	handler := NewCheckoutHandler(&orchestratorMock{}, &methodsMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/?locale=de-DE", nil)

	handler.Currency(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}

	var response map[string]string
	json.NewDecoder(recorder.Body).Decode(&response)
	if response["code"] != "EUR" {
		t.Errorf("Expected EUR, got %s", response["code"])
	}
}
