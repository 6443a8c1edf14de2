package rabbitmq

import (
	"context"
	"expvar"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const ExchangeName = "hr.events"

const publishAttempts = 3

// publishExhausted counts events dropped after every delivery attempt failed.
// Operators watch this to detect drift, since the write path never reports
// the loss.
var publishExhausted = expvar.NewInt("event_publish_exhausted")

// amqpChannel is the slice of *amqp.Channel the publisher uses; tests swap in
// a fake.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher delivers domain events to the topic exchange with bounded retry.
// Delivery is best-effort: once the originating state change is committed, a
// lost event must never fail or roll back the caller, so after retries are
// exhausted the error is logged, the drift counter bumped, and nil returned.
type Publisher struct {
	channel   amqpChannel
	closer    *amqp.Channel
	BaseDelay time.Duration
}

// NewPublisher creates a publisher and declares the topic exchange.
func NewPublisher(conn *Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{channel: ch, closer: ch, BaseDelay: 500 * time.Millisecond}, nil
}

// Publish sends a message to the exchange with the given routing key,
// retrying transient failures with linearly increasing delay.
func (p *Publisher) Publish(routingKey string, body []byte, correlationID string) error {
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		err = p.publishOnce(routingKey, body, correlationID)
		if err == nil {
			if attempt > 1 {
				log.Printf("[Publisher] Delivered after retry: routing_key=%s attempt=%d correlation_id=%s",
					routingKey, attempt, correlationID)
			}
			return nil
		}
		log.Printf("[Publisher] Publish failed: routing_key=%s attempt=%d err=%v correlation_id=%s",
			routingKey, attempt, err, correlationID)
		if attempt < publishAttempts {
			time.Sleep(time.Duration(attempt) * p.BaseDelay)
		}
	}

	publishExhausted.Add(1)
	log.Printf("[Publisher] Event dropped after %d attempts: routing_key=%s err=%v correlation_id=%s",
		publishAttempts, routingKey, err, correlationID)
	return nil
}

func (p *Publisher) publishOnce(routingKey string, body []byte, correlationID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return p.channel.PublishWithContext(
		ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now(),
		},
	)
}

// ExhaustedCount reports how many events have been dropped since start.
func ExhaustedCount() int64 {
	return publishExhausted.Value()
}

// Close closes the publisher channel.
func (p *Publisher) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
