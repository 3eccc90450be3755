package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is one undelivered row of the outbox table. Rows are written in the
// same transaction that commits the order, so a committed order can never
// lose its creation event; the relay owns delivery and retries.
type Event struct {
	ID          int64
	AggregateID string
	Type        string
	Payload     []byte
	Traceparent string
	CreatedAt   time.Time
	Status      Status
	RetryCount  int
	LastError   *string
}
