package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/antonminaichev/linkcard/internal/logger"
	"github.com/antonminaichev/linkcard/internal/types/order"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	Exchange   = "notifications"
	otpRouting = "sms.otp"
)

type Connection interface {
	Channel() (Channel, error)
	Close() error
}

type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpConnection struct {
	conn   *amqp.Connection
	mu     sync.RWMutex
	closed bool
}

func Dial(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return &amqpConnection{conn: conn}, nil
}

func (c *amqpConnection) Channel() (Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("connection is closed")
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

func (c *amqpConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

// AMQPDispatcher publishes notifications to the durable topic exchange
// "notifications" with routing keys email.<kind> and sms.otp.
type AMQPDispatcher struct {
	conn Connection
	now  func() time.Time
}

func NewAMQPDispatcher(conn Connection) *AMQPDispatcher {
	return &AMQPDispatcher{conn: conn, now: time.Now}
}

func (d *AMQPDispatcher) SendOrderEmail(ctx context.Context, o order.Order, kind order.NotificationKind) error {
	msg := newOrderEmailMessage(o, kind, d.now().UTC())
	if err := d.publish(ctx, "email."+string(kind), msg); err != nil {
		return err
	}
	logger.Log.Info("order email queued", zap.String("order", o.Number), zap.String("kind", string(kind)))
	return nil
}

func (d *AMQPDispatcher) SendOTP(ctx context.Context, number, code string) error {
	return d.publish(ctx, otpRouting, OTPMessage{Mobile: number, Code: code, RequestedAt: d.now().UTC()})
}

func (d *AMQPDispatcher) publish(ctx context.Context, key string, v any) error {
	ch, err := d.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = ch.PublishWithContext(ctx, Exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    d.now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}
