package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProducer records messages and can be told to refuse a payload.
type fakeProducer struct {
	mu       sync.Mutex
	messages []kafka.Message
	failOn   string
}

func (p *fakeProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if p.failOn != "" && string(m.Value) == p.failOn {
			return errors.New("broker unavailable")
		}
		p.messages = append(p.messages, m)
	}
	return nil
}

func (p *fakeProducer) all() []kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]kafka.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// fakeStore serves one fixed batch and records state transitions.
type fakeStore struct {
	mu      sync.Mutex
	pending []Event
	sent    []int64
	failed  map[int64]string
}

func newFakeStore(events ...Event) *fakeStore {
	return &fakeStore{pending: events, failed: make(map[int64]string)}
}

func (s *fakeStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch, nil
}

func (s *fakeStore) MarkSent(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = errMsg
	return nil
}

func TestDispatch_BuildsMessage(t *testing.T) {
	producer := &fakeProducer{}
	d := NewDispatcher(discardLogger(), producer, "order.events")

	err := d.Dispatch(context.Background(), Event{
		ID:          1,
		AggregateID: "ord-1",
		Type:        "order.created",
		Payload:     []byte(`{"order_id":"ord-1"}`),
		Traceparent: "00-aaaa-bbbb-01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := producer.all()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.Topic != "order.events" || string(m.Key) != "ord-1" {
		t.Fatalf("message = topic %q key %q", m.Topic, m.Key)
	}
	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event_type"] != "order.created" || headers["traceparent"] != "00-aaaa-bbbb-01" {
		t.Fatalf("headers = %v", headers)
	}
}

func TestRelay_DeliversBatchAndMarksSent(t *testing.T) {
	producer := &fakeProducer{}
	store := newFakeStore(
		Event{ID: 1, AggregateID: "ord-1", Type: "order.created", Payload: []byte("a")},
		Event{ID: 2, AggregateID: "ord-1", Type: "order.paid", Payload: []byte("b")},
	)
	r := NewRelay(discardLogger(), store, NewDispatcher(discardLogger(), producer, "order.events"), "relay-test")

	r.tick(context.Background())

	if got := len(producer.all()); got != 2 {
		t.Fatalf("delivered %d messages, want 2", got)
	}
	if len(store.sent) != 2 || store.sent[0] != 1 || store.sent[1] != 2 {
		t.Fatalf("sent ids = %v, want [1 2]", store.sent)
	}
	if len(store.failed) != 0 {
		t.Fatalf("failed ids = %v, want none", store.failed)
	}
}

func TestRelay_FailedEventIsRecordedNotDropped(t *testing.T) {
	producer := &fakeProducer{failOn: "poison"}
	store := newFakeStore(
		Event{ID: 1, AggregateID: "ord-1", Type: "order.created", Payload: []byte("fine")},
		Event{ID: 2, AggregateID: "ord-2", Type: "order.created", Payload: []byte("poison")},
		Event{ID: 3, AggregateID: "ord-3", Type: "order.created", Payload: []byte("also fine")},
	)
	r := NewRelay(discardLogger(), store, NewDispatcher(discardLogger(), producer, "order.events"), "relay-test")

	r.tick(context.Background())

	// The poison event fails alone; the rest of the batch still goes out.
	if len(store.sent) != 2 {
		t.Fatalf("sent ids = %v, want [1 3]", store.sent)
	}
	if msg, ok := store.failed[2]; !ok || msg == "" {
		t.Fatalf("failed map = %v, want entry for id 2", store.failed)
	}
}

func TestRelay_StopsOnContextCancel(t *testing.T) {
	store := newFakeStore()
	r := NewRelay(discardLogger(), store, NewDispatcher(discardLogger(), &fakeProducer{}, "order.events"), "relay-test").
		WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v, want nil on cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
