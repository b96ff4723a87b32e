package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	exchangeKind       = "topic"
	ordersBindingKey   = "orders.#"
	contentTypeJSON    = "application/json"
	defaultConfirmWait = 10 * time.Second
)

// ErrNotConfirmed is returned when the broker nacks a published message.
var ErrNotConfirmed = errors.New("rabbitmq: publish not confirmed")

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	IsClosed() bool
	Close() error
}

// Message is a single event published to the storefront exchange.
type Message struct {
	MessageID  string
	RoutingKey string
	Type       string
	Body       []byte
	Headers    map[string]interface{}
	Timestamp  time.Time
}

// Client publishes storefront domain events to a durable topic exchange.
type Client struct {
	conn     connection
	channel  channel
	confirms chan amqp.Confirmation
	exchange string
	logg     *logger.Logger

	mu sync.Mutex
}

// New dials the broker, declares the exchange plus the orders queue and
// switches the channel into confirm mode.
func New(ctx context.Context, cfg config.RabbitMQConfig, logg *logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("open rabbitmq channel: %w", err), conn.Close())
	}

	client, err := newClient(conn, ch, cfg, logg)
	if err != nil {
		return nil, multierr.Combine(err, ch.Close(), conn.Close())
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "exchange", cfg.Exchange), "rabbitmq connection established")
	}
	return client, nil
}

func newClient(conn connection, ch channel, cfg config.RabbitMQConfig, logg *logger.Logger) (*Client, error) {
	if cfg.Exchange == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if cfg.Queue != "" {
		if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
		}
		if err := ch.QueueBind(cfg.Queue, ordersBindingKey, cfg.Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("bind queue %s: %w", cfg.Queue, err)
		}
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &Client{
		conn:     conn,
		channel:  ch,
		confirms: confirms,
		exchange: cfg.Exchange,
		logg:     logg,
	}, nil
}

// Publish sends msg as a persistent JSON message and waits for the broker
// to confirm it.
func (c *Client) Publish(ctx context.Context, msg Message) error {
	if c == nil || c.channel == nil {
		return errors.New("rabbitmq channel is not available")
	}
	if msg.RoutingKey == "" {
		return errors.New("routing key is required")
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.channel.Publish(c.exchange, msg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Type:         msg.Type,
		Headers:      amqp.Table(msg.Headers),
		Timestamp:    ts,
		Body:         msg.Body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.RoutingKey, err)
	}

	wait := defaultConfirmWait
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case confirm, ok := <-c.confirms:
		if !ok {
			return errors.New("rabbitmq confirm channel closed")
		}
		if !confirm.Ack {
			return ErrNotConfirmed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish %s: confirm timed out", msg.RoutingKey)
	}
}

// Ping reports whether the underlying connection is still open.
func (c *Client) Ping(context.Context) error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var err error
	if c.channel != nil {
		err = multierr.Append(err, c.channel.Close())
	}
	if c.conn != nil {
		err = multierr.Append(err, c.conn.Close())
	}
	return err
}
