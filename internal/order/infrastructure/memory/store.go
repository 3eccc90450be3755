// Package memory holds the in-process order store and event sink used by
// the simulator and the unit tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	inventorydomain "github.com/chienpv-3590/order-processing-system/internal/inventory/domain"
	"github.com/chienpv-3590/order-processing-system/internal/order/application"
	"github.com/chienpv-3590/order-processing-system/internal/order/domain"
)

// HoldCommitter finalizes stock holds. Satisfied by the inventory stores.
type HoldCommitter interface {
	Commit(ctx context.Context, token string) error
}

// OrderStore keeps committed orders in a map. Save applies the record and
// finalizes the holds under one lock, then hands the queued events to the
// sink; a sink failure is logged, never surfaced, because the order is
// already committed.
type OrderStore struct {
	mu      sync.Mutex
	log     *slog.Logger
	holds   HoldCommitter
	sink    application.EventSink
	records map[string]domain.Record
}

func NewOrderStore(log *slog.Logger, holds HoldCommitter, sink application.EventSink) *OrderStore {
	return &OrderStore{
		log:     log,
		holds:   holds,
		sink:    sink,
		records: make(map[string]domain.Record),
	}
}

func (s *OrderStore) Save(ctx context.Context, rec domain.Record, holds []inventorydomain.Reservation, events []domain.Event) error {
	s.mu.Lock()
	if _, ok := s.records[rec.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("order %s already exists", rec.ID)
	}
	s.records[rec.ID] = rec
	for _, h := range holds {
		if err := s.holds.Commit(ctx, h.Token); err != nil {
			delete(s.records, rec.ID)
			s.mu.Unlock()
			return fmt.Errorf("finalize hold %s: %w", h.Token, err)
		}
	}
	s.mu.Unlock()

	for _, e := range events {
		if err := s.sink.Publish(ctx, e.Name, e.Payload); err != nil {
			s.log.Error("event publish failed after commit", "order_id", rec.ID, "event", e.Name, "err", err)
		}
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.Record{}, fmt.Errorf("order %s not found", id)
	}
	return rec, nil
}

// Len reports how many orders were committed. Test helper.
func (s *OrderStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Published is one event the sink received.
type Published struct {
	Name    string
	Payload []byte
}

// Sink collects published events in memory.
type Sink struct {
	mu     sync.Mutex
	events []Published
}

func NewSink() *Sink { return &Sink{} }

func (s *Sink) Publish(ctx context.Context, name string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Published{Name: name, Payload: payload})
	return nil
}

func (s *Sink) Events() []Published {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Published, len(s.events))
	copy(out, s.events)
	return out
}
