// Package amqp publishes and consumes recurring.fired messages on RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"bilancio/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 30 * time.Second
	maxBackoff  = 30 * time.Second

	defaultRequeueDelay = 2 * time.Second
	defaultMaxAttempts  = 5
)

// Handler processes one message. A returned error requeues the message
// after a delay, until the delivery attempts run out.
type Handler func(ctx context.Context, msg *RecurringFiredMessage) error

type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time

	// requeueDelay doubles with every failed attempt of the same message.
	requeueDelay time.Duration
	maxAttempts  int
	attemptsMu   sync.Mutex
	attempts     map[string]int
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       slog.Default().With(log.FieldComponent, log.ComponentAMQP),
		requeueDelay: defaultRequeueDelay,
		maxAttempts:  defaultMaxAttempts,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	c.conn, c.channel = conn, channel
	return nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// direct exchange: routing key equals queue name
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishRecurringFired publishes msg as a persistent message. While the
// circuit breaker is open it fails immediately.
func (c *Client) PublishRecurringFired(ctx context.Context, msg *RecurringFiredMessage) error {
	if c.isCircuitOpen() {
		return errors.New("publish recurring fired: circuit breaker is open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.connect(); err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.MessageID,
			Timestamp:    msg.Timestamp,
			Type:         "recurring.fired",
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.log().InfoContext(ctx, "Published recurring fired message",
		log.FieldMessageID, msg.MessageID,
		log.FieldRecurringID, msg.RecurringID,
		log.FieldRunDate, msg.RunDate.String())
	return nil
}

// ConsumeRecurringFired delivers messages to handler until ctx is done,
// reconnecting with exponential backoff when the broker drops.
func (c *Client) ConsumeRecurringFired(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		c.log().WarnContext(ctx, "AMQP connection lost, reconnecting", log.FieldError, err, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := c.connect(); err != nil {
			attempt++
			continue
		}
		attempt = 0
	}
}

func (c *Client) consume(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil || ch.IsClosed() {
		return amqp091.ErrClosed
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log().InfoContext(ctx, "Started consuming recurring fired messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed: %w", amqp091.ErrClosed)
			}
			c.handleDelivery(ctx, d, handler)
		}
	}
}

// handleDelivery acks on success and drops bodies that cannot be decoded.
// A handler error requeues the message after a growing delay; once it has
// failed maxAttempts times it is rejected without requeue, which
// dead-letters it when the queue has a dead-letter policy.
func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	msg, err := RecurringFiredMessageFromJSON(d.Body)
	if err != nil {
		c.log().ErrorContext(ctx, "Dropping malformed message", log.FieldError, err, log.FieldMessageID, d.MessageId)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		attempt := c.recordAttempt(msg.MessageID)
		if attempt >= c.attemptLimit() {
			c.forgetAttempts(msg.MessageID)
			c.log().ErrorContext(ctx, "Giving up on message",
				log.FieldError, err,
				log.FieldMessageID, msg.MessageID,
				log.FieldRecurringID, msg.RecurringID,
				"attempts", attempt)
			_ = d.Nack(false, false)
			return
		}

		wait := c.requeueBackoff(attempt)
		c.log().ErrorContext(ctx, "Failed to handle message, requeueing",
			log.FieldError, err,
			log.FieldMessageID, msg.MessageID,
			log.FieldRecurringID, msg.RecurringID,
			"attempt", attempt,
			"redelivered", d.Redelivered,
			"requeue_in", wait)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
			timer.Stop()
		}
		_ = d.Nack(false, true)
		return
	}

	c.forgetAttempts(msg.MessageID)
	_ = d.Ack(false)
	c.log().InfoContext(ctx, "Processed recurring fired message",
		log.FieldMessageID, msg.MessageID,
		log.FieldRecurringID, msg.RecurringID)
}

func (c *Client) recordAttempt(messageID string) int {
	c.attemptsMu.Lock()
	defer c.attemptsMu.Unlock()
	if c.attempts == nil {
		c.attempts = make(map[string]int)
	}
	c.attempts[messageID]++
	return c.attempts[messageID]
}

func (c *Client) forgetAttempts(messageID string) {
	c.attemptsMu.Lock()
	delete(c.attempts, messageID)
	c.attemptsMu.Unlock()
}

func (c *Client) attemptLimit() int {
	if c.maxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return c.maxAttempts
}

// requeueBackoff is requeueDelay doubled per earlier attempt, capped at maxBackoff.
func (c *Client) requeueBackoff(attempt int) time.Duration {
	wait := c.requeueDelay
	for i := 1; i < attempt && wait < maxBackoff; i++ {
		wait *= 2
	}
	return min(wait, maxBackoff)
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
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
