// Package events publishes engine change events to a RabbitMQ topic exchange
// so downstream consumers (notification senders, dashboards) can react to
// slot and queue changes without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Routing keys for engine change events.
const (
	RouteSlotsGenerated = "slot.generated"
	RouteSlotCancelled  = "slot.cancelled"
	RouteQueueUpdated   = "queue.updated"
)

// Envelope wraps every published event with routing metadata.
type Envelope struct {
	Event      string          `json:"event"`
	TenantID   string          `json:"tenant_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher sends events to an AMQP topic exchange. A nil Publisher is valid
// and drops every event, so callers need no enabled/disabled checks.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   zerolog.Logger
}

// NewPublisher connects to the broker and declares the topic exchange. An
// empty amqpURL disables publishing and returns a nil Publisher.
func NewPublisher(amqpURL, exchange string, logger zerolog.Logger) (*Publisher, error) {
	if amqpURL == "" {
		logger.Info().Msg("amqp disabled, change events will not be published")
		return nil, nil
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Publish sends one event. Failures are logged and swallowed; event delivery
// must never fail the request that produced the change.
func (p *Publisher) Publish(ctx context.Context, routingKey, tenantID string, payload interface{}) {
	if p == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Str("routing_key", routingKey).Msg("marshal event payload")
		return
	}

	body, err := json.Marshal(Envelope{
		Event:      routingKey,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("routing_key", routingKey).Msg("marshal event envelope")
		return
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error().Err(err).Str("routing_key", routingKey).Msg("publish event")
		return
	}

	p.logger.Debug().Str("routing_key", routingKey).Str("tenant_id", tenantID).Msg("event published")
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
