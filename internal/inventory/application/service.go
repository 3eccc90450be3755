package application

import (
	"context"
	"log/slog"

	"github.com/chienpv-3590/order-processing-system/internal/inventory/domain"
	orderdomain "github.com/chienpv-3590/order-processing-system/internal/order/domain"
)

// Service reserves stock for whole line sets, all-or-nothing.
type Service struct {
	log   *slog.Logger
	store ProductStore
}

func NewService(log *slog.Logger, store ProductStore) *Service {
	return &Service{log: log, store: store}
}

// Reserve takes a hold for every line or for none. When a line cannot be
// satisfied, holds already taken for earlier lines in the same call are
// released before the error is returned.
func (s *Service) Reserve(ctx context.Context, lines []orderdomain.Line) ([]domain.Reservation, error) {
	reservations := make([]domain.Reservation, 0, len(lines))
	for _, line := range lines {
		res, err := s.store.TryReserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			s.Release(ctx, reservations)
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, nil
}

// Release returns every hold to availability, most recent first.
// Best-effort: a store failure is logged and the remaining tokens are still
// attempted, so a single bad release never strands the rest.
func (s *Service) Release(ctx context.Context, reservations []domain.Reservation) {
	for i := len(reservations) - 1; i >= 0; i-- {
		r := reservations[i]
		if err := s.store.Release(ctx, r.Token); err != nil {
			s.log.Error("inventory release failed", "token", r.Token, "product_id", r.ProductID, "err", err)
		}
	}
}

// Commit finalizes every hold as a permanent deduction.
func (s *Service) Commit(ctx context.Context, reservations []domain.Reservation) error {
	for _, r := range reservations {
		if err := s.store.Commit(ctx, r.Token); err != nil {
			return err
		}
	}
	return nil
}
