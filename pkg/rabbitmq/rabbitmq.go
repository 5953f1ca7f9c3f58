package rabbitmq

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
)

// Publisher is the subset of *amqp.Channel the client needs.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn     *amqp.Connection
	mu       sync.Mutex // guards channel
	channel  Publisher
	exchange string
	logger   *slog.Logger
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
	// Exchange is the durable topic exchange order events are published to.
	Exchange string
}

const DefaultExchange = "order_events"

// NewClient connects to RabbitMQ, opens a channel and declares the event exchange.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	logger.Info("rabbitmq connected", "exchange", cfg.Exchange)
	return &Client{conn: conn, channel: ch, exchange: cfg.Exchange, logger: logger}, nil
}

// NewClientWithChannel builds a client on an already open channel.
func NewClientWithChannel(ch Publisher, exchange string, logger *slog.Logger) *Client {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Client{channel: ch, exchange: exchange, logger: logger}
}

func (c *Client) Exchange() string { return c.exchange }

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Publish sends a persistent JSON message. An empty exchange means the client's exchange.
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	if exchange == "" {
		exchange = c.exchange
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}

	err := c.channel.Publish(
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	c.logger.Debug("event published", "exchange", exchange, "routing_key", routingKey, "bytes", len(body))
	return nil
}
