package order

import (
	"context"

	"github.com/antonminaichev/linkcard/internal/types/order"
)

type OrderRepository interface {
	ListOrders(ctx context.Context) ([]order.Order, error)
	// CreateOrder persists o and fills in its Number and Version.
	CreateOrder(ctx context.Context, o *order.Order) error
	// FindOrder resolves ref as an order id or an order number.
	FindOrder(ctx context.Context, ref string) (*order.Order, error)
	// CompareAndSwapStatus writes status only while the stored version equals
	// expected, reporting false when another writer got there first.
	CompareAndSwapStatus(ctx context.Context, id string, expected int64, status order.OrderStatus) (bool, error)
	AppendEmailSend(ctx context.Context, id string, rec order.EmailSend) error
}

// Notifier sends order emails. Each call is a new message.
type Notifier interface {
	SendOrderEmail(ctx context.Context, o order.Order, kind order.NotificationKind) error
}

// VerificationChecker reports whether a phone number passed OTP verification.
type VerificationChecker interface {
	IsVerified(ctx context.Context, number string) (bool, error)
}
