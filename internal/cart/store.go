package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/velomart/storefront/internal/cache"
	"github.com/velomart/storefront/internal/domain"
	"github.com/velomart/storefront/internal/repository"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Store owns the ordered collection of cart lines for each session.
// Every mutation recomputes line totals and cart aggregates and persists the
// full snapshot before returning, so callers never observe a stale cart.
type Store struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewStore(repo repository.CartRepository, cache cache.CartCache) *Store {
	return &Store{
		repo:  repo,
		cache: cache,
	}
}

func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v \n", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, sessionID)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) { // first visit, materialize an empty cart
			return emptyCart(sessionID), nil
		}
		if errGet != nil {
			return nil, errGet
		}

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), sessionID, cart)
			if errSet != nil {
				log.Printf("cache set error: %v \n", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddLine appends the line, or merges it into an existing line with the same
// cart key by summing quantities. UnitPrice and Currency of an existing line
// are never touched, so multi-currency carts stay intact.
func (s *Store) AddLine(ctx context.Context, sessionID string, line domain.CartLine) (*domain.Cart, error) {
	if line.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if line.CartKey == "" {
		line.CartKey = domain.ComputeCartKey(line.ProductID, line.VariationID, line.SelectedAttributes)
	}

	return s.mutate(ctx, sessionID, func(cart *domain.Cart) {
		if i := cart.FindLine(line.CartKey); i >= 0 {
			cart.Lines[i].Quantity += line.Quantity
			return
		}
		cart.Lines = append(cart.Lines, line)
	})
}

// SetQuantity stores the requested quantity as-is; clamping against available
// stock is the orchestrator's responsibility. An unknown cart key is a no-op.
func (s *Store) SetQuantity(ctx context.Context, sessionID, cartKey string, qty int) (*domain.Cart, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	return s.mutate(ctx, sessionID, func(cart *domain.Cart) {
		if i := cart.FindLine(cartKey); i >= 0 {
			cart.Lines[i].Quantity = qty
		}
	})
}

// RemoveLine drops the line with the given cart key. Unknown key is a no-op.
func (s *Store) RemoveLine(ctx context.Context, sessionID, cartKey string) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *domain.Cart) {
		if i := cart.FindLine(cartKey); i >= 0 {
			cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
		}
	})
}

func (s *Store) Clear(ctx context.Context, sessionID string) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *domain.Cart) {
		cart.Lines = nil
		cart.Coupon = nil
	})
}

// SetCoupon attaches validated coupon terms to the cart.
func (s *Store) SetCoupon(ctx context.Context, sessionID string, coupon *domain.Coupon) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *domain.Cart) {
		cart.Coupon = coupon
	})
}

func (s *Store) ClearCoupon(ctx context.Context, sessionID string) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *domain.Cart) {
		cart.Coupon = nil
	})
}

func (s *Store) mutate(ctx context.Context, sessionID string, fn func(*domain.Cart)) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, sessionID)
	if errors.Is(err, repository.ErrCartNotFound) {
		cart = emptyCart(sessionID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	fn(cart)
	cart.Recompute()
	cart.UpdatedAt = time.Now() // keeps the TTL index fed

	if errUpsert := s.repo.UpsertCart(ctx, cart); errUpsert != nil {
		log.Printf("repo upsert cart error: %v \n", errUpsert)
		return nil, errUpsert
	}

	s.invalidateCache(sessionID)
	return cart, nil
}

func (s *Store) invalidateCache(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errInvalidate := s.cache.Delete(ctx, sessionID)
	if errInvalidate != nil {
		log.Printf("cache invalidate error: %v \n", errInvalidate)
	}
}

func emptyCart(sessionID string) *domain.Cart {
	return &domain.Cart{
		SessionID: sessionID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}
