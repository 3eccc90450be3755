// Package memory holds the in-process product store. The mutex makes the
// availability check and the decrement one step, which is the whole of the
// store's concurrency contract; first successful decrement wins.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/chienpv-3590/order-processing-system/internal/inventory/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

type holdState int

const (
	holdHeld holdState = iota
	holdReleased
	holdCommitted
)

type hold struct {
	productID string
	quantity  int
	state     holdState
}

type Store struct {
	mu       sync.Mutex
	products map[string]*Product
	holds    map[string]*hold
}

func NewStore(products ...Product) *Store {
	s := &Store{
		products: make(map[string]*Product, len(products)),
		holds:    make(map[string]*hold),
	}
	for i := range products {
		p := products[i]
		s.products[p.ID] = &p
	}
	return s
}

func (s *Store) UnitPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return decimal.Decimal{}, &domain.ProductNotFoundError{ProductID: productID}
	}
	return p.Price, nil
}

func (s *Store) TryReserve(ctx context.Context, productID string, qty int) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.Reservation{}, &domain.ProductNotFoundError{ProductID: productID}
	}
	if p.Stock < qty {
		return domain.Reservation{}, &domain.InsufficientStockError{
			ProductID: productID,
			Available: p.Stock,
			Requested: qty,
		}
	}

	p.Stock -= qty
	token := uuid.NewString()
	s.holds[token] = &hold{productID: productID, quantity: qty, state: holdHeld}

	return domain.Reservation{
		Token:       token,
		ProductID:   productID,
		ProductName: p.Name,
		Quantity:    qty,
		UnitPrice:   p.Price,
	}, nil
}

func (s *Store) Release(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[token]
	if !ok || h.state != holdHeld {
		// Already released or committed: a no-op, not an error.
		return nil
	}
	h.state = holdReleased
	s.products[h.productID].Stock += h.quantity
	return nil
}

func (s *Store) Commit(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[token]
	if !ok {
		return fmt.Errorf("commit unknown reservation token %s", token)
	}
	switch h.state {
	case holdCommitted:
		return nil
	case holdReleased:
		return fmt.Errorf("commit released reservation token %s", token)
	}
	h.state = holdCommitted
	return nil
}

// Stock reports current availability. Test helper.
func (s *Store) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		return p.Stock
	}
	return 0
}
