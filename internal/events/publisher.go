package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smartcampus/campus-api/internal/realtime"
	"go.uber.org/zap"
)

const (
	exchangeName = "campus.changes"
	exchangeType = "topic"

	// Retry configuration
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 1 * time.Second

	// publishTimeout bounds a whole Publish call, retries included. Publish
	// runs on the request path of every write.
	publishTimeout = 2 * time.Second
)

var errNotAcknowledged = errors.New("change not acknowledged")

// confirmation is the broker's answer for one publishing.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type publishFunc func(ctx context.Context, routingKey string, msg amqp.Publishing) (confirmation, error)

// RoutingKey is "<table>.<action>", e.g. "events.update".
func RoutingKey(change realtime.Change) string {
	return change.Table + "." + strings.ToLower(string(change.Type))
}

// Publisher sends row changes to the RabbitMQ topic exchange. It satisfies
// realtime.Publisher, so handlers do not know whether a broker is in use.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	publish publishFunc
	timeout time.Duration
	log     *zap.Logger
}

var _ realtime.Publisher = (*Publisher)(nil)

// NewPublisher connects, declares the exchange and enables publisher
// confirms.
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareExchange(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	log.Info("connected to RabbitMQ", zap.String("exchange", exchangeName))

	return &Publisher{
		conn:    conn,
		channel: channel,
		publish: deferredConfirm(channel),
		timeout: publishTimeout,
		log:     log,
	}, nil
}

// deferredConfirm publishes on channel and hands back the confirmation for
// that delivery tag alone.
func deferredConfirm(channel *amqp.Channel) publishFunc {
	return func(ctx context.Context, routingKey string, msg amqp.Publishing) (confirmation, error) {
		dc, err := channel.PublishWithDeferredConfirmWithContext(ctx, exchangeName, routingKey, false, false, msg)
		if err != nil {
			return nil, err
		}
		if dc == nil {
			return nil, errors.New("channel is not in confirm mode")
		}
		return dc, nil
	}
}

func declareExchange(channel *amqp.Channel) error {
	if err := channel.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

// Publish sends change and waits for the broker to confirm it, retrying
// nacks and send failures with exponential backoff. The whole call is
// bounded by ctx and by the publisher timeout.
func (p *Publisher) Publish(ctx context.Context, change realtime.Change) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	routingKey := RoutingKey(change)
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    change.CommitTimestamp,
		MessageId:    change.ID,
		Body:         body,
		Headers: amqp.Table{
			"table": change.Table,
			"type":  string(change.Type),
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return p.giveUp(change, routingKey, attempt, ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}

		confirm, err := p.publish(ctx, routingKey, msg)
		if err != nil {
			lastErr = err
			p.log.Warn("failed to publish change, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			// The deadline is spent; a late confirmation for this tag is
			// simply dropped by the channel.
			return p.giveUp(change, routingKey, attempt+1, fmt.Errorf("confirmation: %w", err))
		}
		if acked {
			p.log.Debug("change published",
				zap.String("change_id", change.ID),
				zap.String("routing_key", routingKey),
			)
			return nil
		}

		lastErr = errNotAcknowledged
		p.log.Warn("change publish not confirmed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}

	return p.giveUp(change, routingKey, maxRetries, lastErr)
}

func (p *Publisher) giveUp(change realtime.Change, routingKey string, attempts int, err error) error {
	p.log.Error("failed to publish change",
		zap.String("change_id", change.ID),
		zap.String("routing_key", routingKey),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return fmt.Errorf("failed to publish change after %d attempts: %w", attempts, err)
}

// IsHealthy checks if the publisher connection is open.
func (p *Publisher) IsHealthy() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

// Close closes the publisher connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Error("failed to close channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.log.Error("failed to close connection", zap.Error(err))
			return err
		}
	}
	p.log.Info("publisher closed")
	return nil
}
