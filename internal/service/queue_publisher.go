package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/turf-reservation/internal/logger"
	"github.com/iliyamo/turf-reservation/internal/metrics"
	"github.com/iliyamo/turf-reservation/internal/queue"
)

// Notifier receives domain events after their transaction commits.
// Implementations must not block the caller for long; failures are logged
// by the engine and never undo the committed change.
type Notifier interface {
	BookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
	MaintenanceChanged(ctx context.Context, ev queue.MaintenanceEvent) error
}

// QueuePublisher publishes events to RabbitMQ.  Each publish dials,
// declares the durable queue and sends one persistent message.
type QueuePublisher struct {
	URL string
}

func NewQueuePublisher(url string) *QueuePublisher { return &QueuePublisher{URL: url} }

func (p *QueuePublisher) BookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	return p.publish(ctx, queue.BookingConfirmedQueue, ev)
}

func (p *QueuePublisher) MaintenanceChanged(ctx context.Context, ev queue.MaintenanceEvent) error {
	return p.publish(ctx, queue.SlotMaintenanceQueue, ev)
}

func (p *QueuePublisher) publish(ctx context.Context, name string, event interface{}) (err error) {
	defer func() { metrics.RecordPublish(name, err) }()

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		logger.Warn("rabbitmq: dial failed", "queue", name, "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("rabbitmq: channel open failed", "queue", name, "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err = ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		logger.Warn("rabbitmq: queue declare failed", "queue", name, "err", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",    // default exchange
		name,  // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		logger.Warn("rabbitmq: publish failed", "queue", name, "err", err)
	}
	return err
}

// nopNotifier drops events; used when the queue is disabled.
type nopNotifier struct{}

func (nopNotifier) BookingConfirmed(context.Context, queue.BookingConfirmedEvent) error { return nil }
func (nopNotifier) MaintenanceChanged(context.Context, queue.MaintenanceEvent) error    { return nil }
