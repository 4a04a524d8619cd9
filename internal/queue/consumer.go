package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// BookingLogFile is the file, under the consumer's log directory, that
// receives one line per booking event.
const BookingLogFile = "booking.log"

// StartBookingConsumer connects to RabbitMQ, declares the booking queue
// (durable) and appends every message to logDir/booking.log. It runs a
// reconnect loop with exponential backoff and returns only when ctx is
// cancelled. Malformed messages are rejected without requeue.
func StartBookingConsumer(ctx context.Context, url, logDir string, logger zerolog.Logger) error {
	log := logger.With().Str("component", "booking-consumer").Logger()
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logDir, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("consume loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("set QoS failed")
	}

	if _, err := ch.QueueDeclare(BookingQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(BookingQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(logDir, d.Body); err != nil {
				requeue := !errors.Is(err, errMalformedEvent)
				log.Error().Err(err).Bool("requeue", requeue).Msg("handle message failed")
				_ = d.Nack(false, requeue)
				if requeue && !sleepCtx(ctx, time.Second) {
					return ctx.Err()
				}
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// errMalformedEvent marks messages that can never be handled. They are
// rejected without requeue; every other failure is requeued.
var errMalformedEvent = errors.New("malformed booking event")

func handleMessage(logDir string, body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if ev.Type == "" {
		return fmt.Errorf("%w: missing type", errMalformedEvent)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, BookingLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatEventLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatEventLine(ev BookingEvent) string {
	origin := "dj"
	if ev.SessionID != "" {
		origin = "session=" + ev.SessionID
	}
	return fmt.Sprintf("[%s] %s | booking_id=%d | dj_id=%d | venue_id=%d | %s | user=%q | song=%q | key=%q | status=%s\n",
		ev.OccurredAt, ev.Type, ev.BookingID, ev.DJID, ev.VenueID, origin, ev.UserName, ev.Song, ev.Key, ev.Status)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
