// Package memory holds the in-process coupon store. TryIncrementUsage
// re-checks the limit under the lock, so no interleaving of concurrent
// redemptions can push usage past it.
package memory

import (
	"context"
	"sync"

	"github.com/chienpv-3590/order-processing-system/internal/coupon/domain"
)

type Store struct {
	mu      sync.Mutex
	coupons map[string]*domain.Coupon
}

func NewStore(coupons ...domain.Coupon) *Store {
	s := &Store{coupons: make(map[string]*domain.Coupon, len(coupons))}
	for i := range coupons {
		c := coupons[i]
		s.coupons[c.Code] = &c
	}
	return s
}

func (s *Store) Find(ctx context.Context, code string) (domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok {
		return domain.Coupon{}, &domain.NotFoundError{Code: code}
	}
	return *c, nil
}

func (s *Store) TryIncrementUsage(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok {
		return &domain.NotFoundError{Code: code}
	}
	if c.Used >= c.MaxUses {
		return &domain.ExhaustedError{Code: code}
	}
	c.Used++
	return nil
}

func (s *Store) DecrementUsage(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok {
		return &domain.NotFoundError{Code: code}
	}
	if c.Used > 0 {
		c.Used--
	}
	return nil
}

// Usage reports the current redemption count. Test helper.
func (s *Store) Usage(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.coupons[code]; ok {
		return c.Used
	}
	return 0
}
