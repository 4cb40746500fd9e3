package messaging

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"tableside/internal/config"
	"tableside/internal/logger"
)

// ChangesExchange is the topic exchange carrying document-change events.
// Routing key: <collection>.<docID>.
const ChangesExchange = "pos.changes"

// Connection wraps the RabbitMQ connection with reconnection logic.
type Connection struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
}

// New creates a new RabbitMQ connection and declares the change topology.
func New(cfg *config.Config, log *logger.Logger) (*Connection, error) {
	conn := &Connection{
		logger: log,
		url:    cfg.RabbitMQURL(),
	}

	if err := conn.connect(); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}

	return conn, nil
}

// connect establishes the connection with retry logic.
func (c *Connection) connect() error {
	maxRetries := 5
	var err error

	for i := 0; i < maxRetries; i++ {
		c.conn, err = amqp091.Dial(c.url)
		if err == nil {
			c.channel, err = c.conn.Channel()
			if err == nil {
				if setupErr := c.setupTopology(); setupErr != nil {
					c.logger.Error("rabbitmq_setup_failed", "Failed to set up topology", "startup", setupErr, nil)
					c.close()
					err = setupErr
				} else {
					return nil
				}
			} else {
				c.conn.Close()
			}
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * 2 * time.Second
			c.logger.Error("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", waitTime),
				"startup", err, nil)
			time.Sleep(waitTime)
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

// setupTopology declares the changes exchange. Queues are per-terminal and
// declared by DeclareTerminalQueue so each terminal gets its own copy of
// every event.
func (c *Connection) setupTopology() error {
	err := c.channel.ExchangeDeclare(
		ChangesExchange, // name
		"topic",         // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", ChangesExchange, err)
	}
	return nil
}

// DeclareTerminalQueue creates this terminal's private queue and binds it to
// the collections it wants to observe.
func (c *Connection) DeclareTerminalQueue(terminalID string, collections []string) (string, error) {
	queueName := fmt.Sprintf("pos_changes_%s", terminalID)

	_, err := c.channel.QueueDeclare(
		queueName, // name
		false,     // durable: terminal queues die with the terminal
		true,      // delete when unused
		true,      // exclusive
		false,     // no-wait
		amqp091.Table{
			"x-message-ttl": 300000, // 5 minutes TTL
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	for _, collection := range collections {
		routingKey := collection + ".*"
		if err := c.channel.QueueBind(queueName, routingKey, ChangesExchange, false, nil); err != nil {
			return "", fmt.Errorf("failed to bind queue %s with routing key %s: %w", queueName, routingKey, err)
		}
	}

	return queueName, nil
}

// Channel returns the current channel.
func (c *Connection) Channel() *amqp091.Channel {
	return c.channel
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsClosed checks if the connection is closed.
func (c *Connection) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect attempts to reconnect to RabbitMQ.
func (c *Connection) Reconnect() error {
	c.close()
	return c.connect()
}
