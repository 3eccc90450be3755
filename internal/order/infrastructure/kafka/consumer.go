package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/chienpv-3590/order-processing-system/internal/order/application"
	"github.com/chienpv-3590/order-processing-system/internal/order/domain"
	"github.com/chienpv-3590/order-processing-system/pkg/idempotency"
	"github.com/chienpv-3590/order-processing-system/pkg/tracing"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// CheckoutRequest is the wire form of an order request. RequestID is the
// client's idempotency key; a replayed request is skipped, not re-run.
type CheckoutRequest struct {
	RequestID       string        `json:"request_id"`
	RequesterID     string        `json:"requester_id"`
	Lines           []domain.Line `json:"lines"`
	CouponCode      string        `json:"coupon_code,omitempty"`
	ShippingAddress string        `json:"shipping_address"`
}

// Consumer feeds checkout requests from kafka into the coordinator.
type Consumer struct {
	log         *slog.Logger
	reader      *kafka.Reader
	coordinator *application.Coordinator
	idem        *idempotency.Store
	tracer      trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, coordinator *application.Coordinator, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:         log,
		reader:      r,
		coordinator: coordinator,
		idem:        idem,
		tracer:      otel.Tracer("checkout-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		c.handle(ctx, msg)
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var req CheckoutRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		c.log.Error("checkout request unmarshal failed", "err", err)
		return
	}

	key := c.idem.RequestKey(req.RequestID)
	if req.RequestID == "" {
		key = c.idem.MessageKey(msg.Topic, msg.Partition, int64(msg.Offset))
	}
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "key", key, "err", err)
		return
	}
	if seen {
		c.log.Info("duplicate checkout request skipped", "key", key)
		return
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeCheckoutRequest")
	defer span.End()

	rec, err := c.coordinator.CreateOrder(msgCtx, domain.Request{
		RequesterID:     req.RequesterID,
		Lines:           req.Lines,
		CouponCode:      req.CouponCode,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		// Business aborts were already logged by the coordinator with
		// their kind; nothing more to do for this message.
		return
	}
	c.log.InfoContext(msgCtx, "checkout request processed", "request_id", req.RequestID, "order_id", rec.ID)
}
