package checkout

import (
	"context"
	"fmt"

	"github.com/velomart/storefront/internal/domain"
	"github.com/velomart/storefront/internal/fulfillment"
	"github.com/velomart/storefront/internal/submissions"
)

type mockCartStore struct {
	cart    *domain.Cart
	getErr  error
	cleared bool
}

func (m *mockCartStore) Get(context.Context, string) (*domain.Cart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.cart, nil
}

func (m *mockCartStore) Clear(_ context.Context, sessionID string) (*domain.Cart, error) {
	m.cleared = true
	m.cart = &domain.Cart{SessionID: sessionID}
	return m.cart, nil
}

type mockCouponEngine struct {
	removed bool
	err     error
}

func (m *mockCouponEngine) ReconcileOnCartChange(_ context.Context, cart *domain.Cart) (*domain.Cart, bool, error) {
	if m.err != nil {
		return cart, false, m.err
	}
	if m.removed {
		cart.Coupon = nil
	}
	return cart, m.removed, nil
}

type mockMethods struct {
	selection fulfillment.Selection
	resets    int
}

func (m *mockMethods) Selection(string) fulfillment.Selection { return m.selection }
func (m *mockMethods) Reset(string)                           { m.resets++ }

type mockBackend struct {
	stocks      map[int64]*domain.ProductStock
	stockErr    error
	order       *domain.OrderResult
	orderErr    error
	orderCalls  int
	lastRequest *domain.OrderRequest
}

func (m *mockBackend) GetProductStock(_ context.Context, productID int64) (*domain.ProductStock, error) {
	if m.stockErr != nil {
		return nil, m.stockErr
	}
	if product, ok := m.stocks[productID]; ok {
		return product, nil
	}
	return nil, fmt.Errorf("unknown product %d", productID)
}

func (m *mockBackend) CreateOrder(_ context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	m.orderCalls++
	m.lastRequest = req
	if m.orderErr != nil {
		return nil, m.orderErr
	}
	return m.order, nil
}

type mockSubmissionLog struct {
	records map[string]*submissions.Submission
	getErr  error
}

func newMockSubmissionLog() *mockSubmissionLog {
	return &mockSubmissionLog{records: make(map[string]*submissions.Submission)}
}

func (m *mockSubmissionLog) GetByIdempotencyKey(_ context.Context, key string) (*submissions.Submission, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if s, ok := m.records[key]; ok {
		return s, nil
	}
	return nil, submissions.ErrSubmissionNotFound
}

func (m *mockSubmissionLog) Record(_ context.Context, s *submissions.Submission) error {
	m.records[s.IdempotencyKey] = s
	return nil
}

func (m *mockSubmissionLog) Close() error { return nil }

type mockPublisher struct {
	published int
	err       error
}

func (m *mockPublisher) PublishOrderSubmitted(context.Context, string, *domain.OrderResult) error {
	if m.err != nil {
		return m.err
	}
	m.published++
	return nil
}
