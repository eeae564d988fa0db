// Package amqp exchanges dataset reload requests and events over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"faturas/internal/dataset"
	"faturas/internal/log"
)

const (
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var ErrChannelClosed = errors.New("message channel closed")

// Client publishes reload events and consumes reload requests. Requests
// travel on reloadKey and every consumer binds its own exclusive queue, so
// each running server gets a copy. Events use EventReloaded.
type Client struct {
	url          string
	exchangeName string
	reloadKey    string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

var _ dataset.Notifier = (*Client)(nil)

func NewClient(url, exchangeName, reloadKey string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default(log.ComponentAMQP)
	}
	c := &Client{url: url, exchangeName: exchangeName, reloadKey: reloadKey, logger: logger}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(channel, c.exchangeName); err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

// topology is the subset of *amqp091.Channel used to declare the exchange
// and the reload queue.
type topology interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
}

func declareExchange(ch topology, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

// bindReloadQueue declares a server-named, exclusive, auto-delete queue bound
// to key and returns its name. The queue disappears with the connection.
func bindReloadQueue(ch topology, exchange, key string) (string, error) {
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", fmt.Errorf("declare reload queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
		return "", fmt.Errorf("bind reload queue: %w", err)
	}
	return q.Name, nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return ErrChannelClosed
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return ch.PublishWithContext(ctx, c.exchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// PublishReloaded announces a finished load.
func (c *Client) PublishReloaded(ctx context.Context, r dataset.LoadReport) error {
	body, err := NewReloadedEvent(r).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.publish(ctx, EventReloaded, body); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	c.logger.InfoContext(ctx, "Published reload event",
		"exchange", c.exchangeName,
		log.FieldRecords, r.RowsKept)
	return nil
}

// PublishReloadRequest asks every running consumer to reload.
func (c *Client) PublishReloadRequest(ctx context.Context, reason string) error {
	body, err := NewReloadRequest(reason).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := c.publish(ctx, c.reloadKey, body); err != nil {
		return fmt.Errorf("publish request: %w", err)
	}
	return nil
}

// ConsumeReloads handles reload requests until ctx is done. Malformed
// messages are dropped; handler failures are requeued.
func (c *Client) ConsumeReloads(ctx context.Context, handler func(context.Context, *ReloadRequest) error) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return ErrChannelClosed
	}

	queue, err := bindReloadQueue(ch, c.exchangeName, c.reloadKey)
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(queue, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.logger.InfoContext(ctx, "Started consuming reload requests", "queue", queue, "key", c.reloadKey)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return ErrChannelClosed
			}
			handleDelivery(ctx, c.logger, delivery, handler)
		}
	}
}

// acknowledger is the subset of amqp091.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, logger *log.Logger, d amqp091.Delivery, handler func(context.Context, *ReloadRequest) error) {
	settle(ctx, logger, d.Body, d, handler)
}

func settle(ctx context.Context, logger *log.Logger, body []byte, ack acknowledger, handler func(context.Context, *ReloadRequest) error) {
	msg, err := ReloadRequestFromJSON(body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to unmarshal reload request", log.FieldError, err)
		_ = ack.Nack(false, false)
		return
	}
	if err := handler(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to handle reload request", log.FieldError, err, "reason", msg.Reason)
		_ = ack.Nack(false, true)
		return
	}
	_ = ack.Ack(false)
	logger.InfoContext(ctx, "Processed reload request", "reason", msg.Reason)
}

// Run consumes reload requests and reconnects with exponential backoff after
// connection failures. It returns nil once ctx is done.
func (c *Client) Run(ctx context.Context, handler func(context.Context, *ReloadRequest) error) error {
	attempt := 0
	for {
		err := c.ConsumeReloads(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "AMQP connection lost, reconnecting", log.FieldError, err, "backoff", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		c.closeConn()
		if err := c.connect(); err != nil {
			attempt++
			continue
		}
		attempt = 0
	}
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChannelClosed) || errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.closeConn()
	return nil
}
