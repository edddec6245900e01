package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/antonminaichev/linkcard/internal/types/order"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type stubChannel struct {
	declared   []string
	published  []published
	publishErr error
	closed     int
}

func (c *stubChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.declared = append(c.declared, name+":"+kind)
	return nil
}

func (c *stubChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *stubChannel) Close() error {
	c.closed++
	return nil
}

type stubConnection struct {
	ch         *stubChannel
	channelErr error
}

func (c *stubConnection) Channel() (Channel, error) {
	if c.channelErr != nil {
		return nil, c.channelErr
	}
	return c.ch, nil
}

func (c *stubConnection) Close() error { return nil }

func TestAMQPDispatcherOrderEmail(t *testing.T) {
	ch := &stubChannel{}
	d := NewAMQPDispatcher(&stubConnection{ch: ch})
	d.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	tracking := "TRK1"
	o := order.Order{
		ID:             "id-1",
		Number:         "LNK-1001",
		Status:         order.StatusShipped,
		CustomerName:   "Asha",
		Email:          "asha@example.com",
		Pricing:        order.Pricing{Total: 49.5},
		TrackingNumber: &tracking,
	}
	require.NoError(t, d.SendOrderEmail(context.Background(), o, order.EmailShipped))

	require.Len(t, ch.published, 1)
	p := ch.published[0]
	assert.Equal(t, Exchange, p.exchange)
	assert.Equal(t, "email.shipped", p.key)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	assert.Equal(t, []string{"notifications:topic"}, ch.declared)
	assert.Equal(t, 1, ch.closed)

	var msg OrderEmailMessage
	require.NoError(t, json.Unmarshal(p.msg.Body, &msg))
	assert.Equal(t, "LNK-1001", msg.OrderNumber)
	assert.Equal(t, order.EmailShipped, msg.Kind)
	assert.Equal(t, "TRK1", msg.TrackingNumber)
}

func TestAMQPDispatcherOTP(t *testing.T) {
	ch := &stubChannel{}
	d := NewAMQPDispatcher(&stubConnection{ch: ch})

	require.NoError(t, d.SendOTP(context.Background(), "+919999999999", "123456"))
	require.Len(t, ch.published, 1)
	assert.Equal(t, "sms.otp", ch.published[0].key)

	var msg OTPMessage
	require.NoError(t, json.Unmarshal(ch.published[0].msg.Body, &msg))
	assert.Equal(t, "123456", msg.Code)
}

func TestAMQPDispatcherErrors(t *testing.T) {
	d := NewAMQPDispatcher(&stubConnection{channelErr: errors.New("connection is closed")})
	assert.Error(t, d.SendOTP(context.Background(), "1", "2"))

	ch := &stubChannel{publishErr: errors.New("channel closed")}
	d = NewAMQPDispatcher(&stubConnection{ch: ch})
	err := d.SendOrderEmail(context.Background(), order.Order{Number: "LNK-1"}, order.EmailReceipt)
	assert.ErrorContains(t, err, "email.receipt")
	assert.Equal(t, 1, ch.closed)
}

func TestLogDispatcher(t *testing.T) {
	var d Dispatcher = LogDispatcher{}
	assert.NoError(t, d.SendOrderEmail(context.Background(), order.Order{}, order.EmailConfirmation))
	assert.NoError(t, d.SendOTP(context.Background(), "1", "2"))
}
