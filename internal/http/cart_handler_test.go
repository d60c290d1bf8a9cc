package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/velomart/storefront/internal/checkout"
	"github.com/velomart/storefront/internal/domain"
)

type storeMock struct {
	cart     *domain.Cart
	err      error
	addedKey string
	lastQty  int
	cleared  bool
}

func (s *storeMock) AddLine(_ context.Context, _ string, line domain.CartLine) (*domain.Cart, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.addedKey = line.CartKey
	s.lastQty = line.Quantity
	return s.cart, nil
}

func (s *storeMock) SetQuantity(_ context.Context, _, cartKey string, qty int) (*domain.Cart, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.addedKey = cartKey
	s.lastQty = qty
	return s.cart, nil
}

func (s *storeMock) RemoveLine(_ context.Context, _, cartKey string) (*domain.Cart, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.addedKey = cartKey
	return s.cart, nil
}

func (s *storeMock) Clear(_ context.Context, _ string) (*domain.Cart, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.cleared = true
	return &domain.Cart{SessionID: "s1"}, nil
}

func (s *storeMock) Get(_ context.Context, _ string) (*domain.Cart, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cart, nil
}

type evaluatorMock struct {
	eval *checkout.Evaluation
	err  error
}

func (e *evaluatorMock) Evaluate(context.Context, string) (*checkout.Evaluation, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.eval, nil
}

func withSession(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), "session_id", "s1")
	return r.WithContext(ctx)
}

func testCart() *domain.Cart {
	cart := &domain.Cart{
		SessionID: "s1",
		Lines: []domain.CartLine{
			{CartKey: "k1", ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromFloat(50.00), Currency: "PLN"},
		},
	}
	cart.Recompute()
	return cart
}

func TestGetCart_Success(t *testing.T) {
	cart := testCart()
	evalMock := &evaluatorMock{eval: &checkout.Evaluation{
		Cart:            cart,
		DiscountedTotal: cart.TotalPrice,
		State:           domain.CheckoutStateIdle,
	}}
	handler := NewCartHandler(&storeMock{cart: cart}, evalMock, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("GET", "/", nil))

	handler.GetCart(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}

	var response checkout.Evaluation
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Cart.TotalQuantity != 2 {
		t.Errorf("Expected total quantity 2, got %d", response.Cart.TotalQuantity)
	}
}

func TestGetCart_MissingSession(t *testing.T) {
	handler := NewCartHandler(&storeMock{}, &evaluatorMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/", nil)
	// No session_id in context

	handler.GetCart(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

func TestAddLine_Success(t *testing.T) {
	cart := testCart()
	store := &storeMock{cart: cart}
	evalMock := &evaluatorMock{eval: &checkout.Evaluation{Cart: cart, DiscountedTotal: cart.TotalPrice}}
	handler := NewCartHandler(store, evalMock, 5*time.Second)

	body, _ := json.Marshal(AddLineRequestDTO{
		ProductID: 1,
		Quantity:  2,
		UnitPrice: decimal.NewFromFloat(50.00),
		Currency:  "PLN",
	})

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("POST", "/", bytes.NewReader(body)))

	handler.AddLine(recorder, request)

	if recorder.Code != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, recorder.Code)
	}
	if store.lastQty != 2 {
		t.Errorf("Expected quantity 2 passed to store, got %d", store.lastQty)
	}
}

func TestAddLine_DefaultsCurrencyFromLocale(t *testing.T) {
	cart := testCart()
	store := &storeMock{cart: cart}
	handler := NewCartHandler(store, &evaluatorMock{eval: &checkout.Evaluation{Cart: cart}}, 5*time.Second)

	body, _ := json.Marshal(AddLineRequestDTO{
		ProductID: 1,
		Quantity:  1,
		UnitPrice: decimal.NewFromFloat(10.00),
	})

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("POST", "/", bytes.NewReader(body)))
	request.Header.Set("Accept-Language", "de-DE")

	handler.AddLine(recorder, request)

	if recorder.Code != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, recorder.Code)
	}
}

func TestAddLine_InvalidQuantity(t *testing.T) {
	handler := NewCartHandler(&storeMock{}, &evaluatorMock{}, 5*time.Second)

	body, _ := json.Marshal(AddLineRequestDTO{ProductID: 1, Quantity: 0})

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("POST", "/", bytes.NewReader(body)))

	handler.AddLine(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, recorder.Code)
	}

	var response ErrorResponse
	json.NewDecoder(recorder.Body).Decode(&response)
	if response.Code != "invalid_quantity" {
		t.Errorf("Expected code invalid_quantity, got %s", response.Code)
	}
}

func TestUpdateQuantity_Success(t *testing.T) {
	cart := testCart()
	store := &storeMock{cart: cart}
	handler := NewCartHandler(store, &evaluatorMock{eval: &checkout.Evaluation{Cart: cart}}, 5*time.Second)

	body, _ := json.Marshal(UpdateQuantityRequestDTO{Quantity: 5})

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("PUT", "/k1", bytes.NewReader(body)))

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("cart_key", "k1")
	request = request.WithContext(context.WithValue(request.Context(), chi.RouteCtxKey, rctx))

	handler.UpdateQuantity(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}
	if store.addedKey != "k1" || store.lastQty != 5 {
		t.Errorf("Expected k1/5 passed to store, got %s/%d", store.addedKey, store.lastQty)
	}
}

func TestClearCart_Success(t *testing.T) {
	store := &storeMock{cart: testCart()}
	handler := NewCartHandler(store, &evaluatorMock{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withSession(httptest.NewRequest("DELETE", "/", nil))

	handler.ClearCart(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}
	if !store.cleared {
		t.Error("Expected store.Clear to be called")
	}
}
