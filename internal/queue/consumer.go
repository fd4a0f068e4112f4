package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/turf-reservation/internal/logger"
)

// Consumer listens on the booking and maintenance queues and appends one
// human-readable line per event to Out.  Messages that cannot be decoded
// are rejected without requeue so a poison message cannot spin the loop.
type Consumer struct {
	URL string
	Out io.Writer

	mu sync.Mutex // serializes writes to Out
}

// NewConsumer returns a Consumer for the broker at url writing to out.
func NewConsumer(url string, out io.Writer) *Consumer {
	return &Consumer{URL: url, Out: out}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff (capped at 30s) whenever the connection drops.
// It returns ctx.Err() on shutdown.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			logger.Warn("event consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("event consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("event consumer: set QoS failed", "err", err)
	}

	bookings, err := declareAndConsume(ch, BookingConfirmedQueue)
	if err != nil {
		return err
	}
	maintenance, err := declareAndConsume(ch, SlotMaintenanceQueue)
	if err != nil {
		return err
	}
	logger.Info("event consumer: listening", "queues", []string{BookingConfirmedQueue, SlotMaintenanceQueue})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-bookings:
			if !ok {
				return errors.New("booking deliveries channel closed")
			}
			c.deliver(BookingConfirmedQueue, d)
		case d, ok := <-maintenance:
			if !ok {
				return errors.New("maintenance deliveries channel closed")
			}
			c.deliver(SlotMaintenanceQueue, d)
		}
	}
}

func declareAndConsume(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", queue, err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", queue, err)
	}
	return msgs, nil
}

func (c *Consumer) deliver(queue string, d amqp.Delivery) {
	if err := c.Handle(queue, d.Body); err != nil {
		logger.Error("event consumer: handle message failed", "queue", queue, "err", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Handle decodes one message from queue and writes its audit line.
func (c *Consumer) Handle(queue string, body []byte) error {
	var line string
	switch queue {
	case BookingConfirmedQueue:
		var ev BookingConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = FormatBooking(ev)
	case SlotMaintenanceQueue:
		var ev MaintenanceEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = FormatMaintenance(ev)
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.Out, line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatBooking renders a booking event as a single audit line.
func FormatBooking(ev BookingConfirmedEvent) string {
	return fmt.Sprintf("[%s] Reservation confirmed | event_id=%s | reservation_id=%d | user_id=%d | date=%s | time=%s-%s | amount=%s | units=[%s]\n",
		ev.ConfirmedAt, ev.EventID, ev.ReservationID, ev.UserID, ev.Date, ev.StartTime, ev.EndTime, ev.Amount, strings.Join(ev.Units, ","))
}

// FormatMaintenance renders a maintenance event as a single audit line.
func FormatMaintenance(ev MaintenanceEvent) string {
	return fmt.Sprintf("[%s] Maintenance updated | event_id=%s | date=%s | marked=[%s] | cleared=[%s]\n",
		ev.At, ev.EventID, ev.Date, strings.Join(ev.Marked, ","), strings.Join(ev.Cleared, ","))
}
