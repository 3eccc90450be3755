package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chienpv-3590/order-processing-system/internal/coupon/domain"
)

// Service validates and redeems coupons. Codes are stored upper-cased, so
// lookups normalize the caller's code first.
type Service struct {
	log     *slog.Logger
	store   CouponStore
	nowFunc func() time.Time
}

func NewService(log *slog.Logger, store CouponStore) *Service {
	return &Service{log: log, store: store, nowFunc: time.Now}
}

// Validate checks eligibility without consuming a redemption.
func (s *Service) Validate(ctx context.Context, code string) (domain.Coupon, error) {
	cpn, err := s.store.Find(ctx, normalize(code))
	if err != nil {
		return domain.Coupon{}, err
	}
	if cpn.Expired(s.nowFunc()) {
		return domain.Coupon{}, &domain.ExpiredError{Code: cpn.Code}
	}
	if cpn.Exhausted() {
		return domain.Coupon{}, &domain.ExhaustedError{Code: cpn.Code}
	}
	return cpn, nil
}

// Use consumes one redemption. The limit is re-checked atomically at
// increment time, so a coupon exhausted between Validate and Use still
// fails with *domain.ExhaustedError.
func (s *Service) Use(ctx context.Context, code string) error {
	return s.store.TryIncrementUsage(ctx, normalize(code))
}

// Unuse returns a redemption consumed by Use. Called only when the
// surrounding order transaction aborts after Use succeeded.
func (s *Service) Unuse(ctx context.Context, code string) error {
	if err := s.store.DecrementUsage(ctx, normalize(code)); err != nil {
		s.log.Error("coupon rollback failed", "code", normalize(code), "err", err)
		return err
	}
	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
