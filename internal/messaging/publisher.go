package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"tableside/internal/logger"
)

// ChangePublisher is implemented by anything that can announce a committed
// write; the transaction layer depends on this, not on RabbitMQ.
type ChangePublisher interface {
	PublishChange(ctx context.Context, event ChangeEvent) error
}

// Publisher publishes change events to the pos.changes exchange.
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a new change-event publisher.
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// PublishChange publishes a document-change event.
func (p *Publisher) PublishChange(ctx context.Context, event ChangeEvent) error {
	if p.conn.IsClosed() {
		if err := p.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: 1, // change events are transient; the store is the source of truth
		Timestamp:    time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.conn.Channel().PublishWithContext(
		ctx,
		ChangesExchange,
		event.RoutingKey(),
		false, // mandatory
		false, // immediate
		publishing,
	)

	if err != nil {
		p.logger.Error("change_publish_failed",
			fmt.Sprintf("Failed to publish change for %s/%s", event.Collection, event.DocID),
			"", err, map[string]interface{}{
				"collection":  event.Collection,
				"doc_id":      event.DocID,
				"version":     event.Version,
				"routing_key": event.RoutingKey(),
			})
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	p.logger.Debug("change_published",
		fmt.Sprintf("Published change for %s/%s", event.Collection, event.DocID),
		"", map[string]interface{}{
			"collection":   event.Collection,
			"doc_id":       event.DocID,
			"version":      event.Version,
			"message_size": len(body),
		})

	return nil
}

// Close closes the publisher.
func (p *Publisher) Close() error {
	return p.conn.Close()
}
