package order

import "github.com/antonminaichev/linkcard/internal/types/order"

// Policy decides whether an order may move from current to next.
type Policy func(current, next order.OrderStatus) bool

// AllowAll accepts every transition, including moves out of delivered or
// cancelled.
func AllowAll(current, next order.OrderStatus) bool {
	return true
}

var forward = map[order.OrderStatus]order.OrderStatus{
	order.StatusPending:    order.StatusConfirmed,
	order.StatusConfirmed:  order.StatusProduction,
	order.StatusProduction: order.StatusShipped,
	order.StatusShipped:    order.StatusDelivered,
}

// ForwardOnly allows one step forward in the order pending, confirmed,
// production, shipped, delivered. Unfinished orders may also be cancelled,
// and the current status may be applied again.
func ForwardOnly(current, next order.OrderStatus) bool {
	if current == next {
		return true
	}
	if current == order.StatusDelivered || current == order.StatusCancelled {
		return false
	}
	if next == order.StatusCancelled {
		return true
	}
	return forward[current] == next
}
