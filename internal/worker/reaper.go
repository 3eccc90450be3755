package worker

import (
	"context"
	"log/slog"
	"time"
)

// HoldStore releases stock holds older than the given TTL.
type HoldStore interface {
	ReleaseExpired(ctx context.Context, ttl time.Duration) (int, error)
}

// Reaper periodically returns expired holds to availability. A coordinator
// that crashed between reserve and commit leaves holds behind; without the
// reaper that stock would be stranded forever.
type Reaper struct {
	log      *slog.Logger
	store    HoldStore
	ttl      time.Duration
	interval time.Duration
}

func NewReaper(log *slog.Logger, store HoldStore, ttl, interval time.Duration) *Reaper {
	return &Reaper{log: log, store: store, ttl: ttl, interval: interval}
}

func (r *Reaper) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.log.Info("hold reaper started", "ttl", r.ttl.String(), "interval", r.interval.String())
	for {
		select {
		case <-ctx.Done():
			r.log.Info("hold reaper stopping")
			return nil
		case <-t.C:
			released, err := r.store.ReleaseExpired(ctx, r.ttl)
			if err != nil {
				r.log.Error("hold reap failed", "err", err)
				continue
			}
			if released > 0 {
				r.log.Info("expired holds released", "count", released)
			}
		}
	}
}
