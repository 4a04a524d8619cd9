package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Publisher sends booking events to RabbitMQ. Each publish dials its own
// connection; calls go through a circuit breaker so a broker outage costs
// one failed dial per cool-down window instead of one per request.
type Publisher struct {
	url     string
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     zerolog.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger zerolog.Logger) *Publisher {
	p := &Publisher{url: url, log: logger.With().Str("component", "booking-publisher").Logger()}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "rabbitmq-publisher",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return p
}

// PublishBookingEvent publishes ev as a persistent message on the booking
// queue. Errors are logged and returned so callers can ignore them without
// interrupting the request.
func (p *Publisher) PublishBookingEvent(ctx context.Context, ev BookingEvent) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publish(ctx, ev)
	})
	if err != nil {
		p.log.Warn().Err(err).Str("type", string(ev.Type)).Uint64("booking_id", ev.BookingID).Msg("publish booking event failed")
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, ev BookingEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(BookingQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	return ch.PublishWithContext(ctx, "", BookingQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
