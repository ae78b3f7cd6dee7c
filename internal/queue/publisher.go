package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends events to a durable queue on the default exchange.  Each
// publish dials its own connection, so a broker outage never outlives one
// call.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger
}

func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, queue: queue, log: log}
}

// PublishBookingConfirmed publishes ev as a persistent JSON message.
// Errors are logged and returned; callers usually ignore them.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", zap.String("queue", p.queue), zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.BookingID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.String("booking_id", ev.BookingID), zap.Error(err))
		return err
	}
	return nil
}
