// Package notify hands order emails and OTP texts to the outbound providers.
package notify

import (
	"context"
	"time"

	"github.com/antonminaichev/linkcard/internal/logger"
	"github.com/antonminaichev/linkcard/internal/types/order"

	"go.uber.org/zap"
)

// Dispatcher delivers notifications out-of-band. Every call is a new send.
type Dispatcher interface {
	SendOrderEmail(ctx context.Context, o order.Order, kind order.NotificationKind) error
	SendOTP(ctx context.Context, number, code string) error
}

type OrderEmailMessage struct {
	OrderID        string                 `json:"orderId"`
	OrderNumber    string                 `json:"orderNumber"`
	Kind           order.NotificationKind `json:"emailType"`
	CustomerName   string                 `json:"customerName"`
	Email          string                 `json:"email"`
	Status         order.OrderStatus      `json:"status"`
	Total          float64                `json:"total"`
	TrackingNumber string                 `json:"trackingNumber,omitempty"`
	RequestedAt    time.Time              `json:"requestedAt"`
}

type OTPMessage struct {
	Mobile      string    `json:"mobile"`
	Code        string    `json:"otp"`
	RequestedAt time.Time `json:"requestedAt"`
}

func newOrderEmailMessage(o order.Order, kind order.NotificationKind, now time.Time) OrderEmailMessage {
	msg := OrderEmailMessage{
		OrderID:      o.ID,
		OrderNumber:  o.Number,
		Kind:         kind,
		CustomerName: o.CustomerName,
		Email:        o.Email,
		Status:       o.Status,
		Total:        o.Pricing.Total,
		RequestedAt:  now,
	}
	if o.TrackingNumber != nil {
		msg.TrackingNumber = *o.TrackingNumber
	}
	return msg
}

// LogDispatcher only logs. Used when no broker is configured.
type LogDispatcher struct{}

func (LogDispatcher) SendOrderEmail(ctx context.Context, o order.Order, kind order.NotificationKind) error {
	logger.Log.Info("order email (log only)",
		zap.String("order", o.Number),
		zap.String("kind", string(kind)),
		zap.String("email", o.Email),
	)
	return nil
}

func (LogDispatcher) SendOTP(ctx context.Context, number, code string) error {
	logger.Log.Info("otp sms (log only)", zap.String("mobile", number))
	return nil
}
