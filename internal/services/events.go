package services

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Routing keys of events published after a state change commits.
const (
	EventOrderCreated          = "order.created"
	EventPaymentSuccessful     = "order.payment.successful"
	EventPaymentFailed         = "order.payment.failed"
	EventPaymentOrphaned       = "order.payment.orphaned"
	EventCancellationRequested = "order.cancellation.requested"
	EventCancellationRejected  = "order.cancellation.rejected"
	EventOrderCancelled        = "order.cancelled"
	EventOrdersExported        = "orders.exported"
)

// EventPublisher is satisfied by *rabbitmq.Client. An empty exchange means the publisher's default.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// OrderEvent is the message body consumed by the notifier.
type OrderEvent struct {
	Event       string    `json:"event"`
	OrderID     string    `json:"order_id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	Payment     string    `json:"payment,omitempty"`
	TotalAmount string    `json:"total_amount,omitempty"`
	OrderIDs    []string  `json:"order_ids,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// publish is best effort: the state change has already committed, so a failure is only logged.
func publish(p EventPublisher, logger *slog.Logger, ev OrderEvent) {
	if p == nil {
		logger.Debug("no event publisher configured, skipping", "event", ev.Event)
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to marshal event", "event", ev.Event, "error", err)
		return
	}
	if err := p.Publish("", ev.Event, body); err != nil {
		logger.Warn("failed to publish event", "event", ev.Event, "order_id", ev.OrderID, "error", err)
	}
}
