package storage

import (
	"context"
	"errors"

	"github.com/antonminaichev/linkcard/internal/types/order"
)

// ErrNotFound is returned by stores when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// FirstOrderNumber is the sequence value behind the first order, LNK-1001.
const FirstOrderNumber = 1001

// OrderNumberPrefix precedes the sequence value in human order numbers.
const OrderNumberPrefix = "LNK-"

// OrderRepository covers the order operations.
type OrderRepository interface {
	ListOrders(ctx context.Context) ([]order.Order, error)
	CreateOrder(ctx context.Context, o *order.Order) error
	FindOrder(ctx context.Context, ref string) (*order.Order, error)
	CompareAndSwapStatus(ctx context.Context, id string, expected int64, status order.OrderStatus) (bool, error)
	AppendEmailSend(ctx context.Context, id string, rec order.EmailSend) error
}

// Storage is an order store plus its connection management.
type Storage interface {
	OrderRepository

	Ping(ctx context.Context) error
	Close() error
}
