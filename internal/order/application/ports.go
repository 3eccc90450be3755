package application

import (
	"context"

	inventorydomain "github.com/chienpv-3590/order-processing-system/internal/inventory/domain"
	"github.com/chienpv-3590/order-processing-system/internal/order/domain"
	"github.com/google/uuid"
)

// OrderStore persists committed orders. Save writes the record, finalizes
// the stock holds and queues the creation events as one atomic write; if it
// fails, the holds are still releasable and nothing is queued.
type OrderStore interface {
	Save(ctx context.Context, rec domain.Record, holds []inventorydomain.Reservation, events []domain.Event) error
	Get(ctx context.Context, id string) (domain.Record, error)
}

// EventSink receives queued events after the order committed. Best-effort
// from the coordinator's perspective; delivery retries live behind the sink.
type EventSink interface {
	Publish(ctx context.Context, name string, payload []byte) error
}

// IdentifierGenerator yields order identifiers that stay collision-free
// under concurrent callers across process restarts.
type IdentifierGenerator interface {
	Next() string
}

// UUIDGenerator is the default: a random 128-bit identifier, so restarts
// and load spikes cannot collide the way timestamp-derived ids can.
type UUIDGenerator struct{}

func (UUIDGenerator) Next() string { return uuid.NewString() }
