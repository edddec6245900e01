package order

import "time"

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProduction OrderStatus = "production"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var Statuses = []OrderStatus{
	StatusPending, StatusConfirmed, StatusProduction,
	StatusShipped, StatusDelivered, StatusCancelled,
}

// ParseStatus compares s against the six statuses exactly, case included.
func ParseStatus(s string) (OrderStatus, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

type NotificationKind string

const (
	EmailConfirmation NotificationKind = "confirmation"
	EmailReceipt      NotificationKind = "receipt"
	EmailProduction   NotificationKind = "production"
	EmailShipped      NotificationKind = "shipped"
	EmailDelivered    NotificationKind = "delivered"
)

var NotificationKinds = []NotificationKind{
	EmailConfirmation, EmailReceipt, EmailProduction, EmailShipped, EmailDelivered,
}

func ParseNotificationKind(s string) (NotificationKind, bool) {
	for _, k := range NotificationKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

type CardConfig struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Title          string `json:"title,omitempty"`
	Company        string `json:"company,omitempty"`
	Mobile         string `json:"mobile,omitempty"`
	Whatsapp       string `json:"whatsapp,omitempty"`
	Email          string `json:"email,omitempty"`
	Website        string `json:"website,omitempty"`
	Quantity       int    `json:"quantity,omitempty"`
	MobileVerified bool   `json:"mobileVerified"`
}

type Pricing struct {
	Total float64 `json:"total"`
}

// EmailSend is one notification dispatch attempt. Records are only appended.
type EmailSend struct {
	Kind    NotificationKind `json:"kind"`
	SentAt  time.Time        `json:"sentAt"`
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`
}

type Order struct {
	ID             string      `db:"id" json:"id"`
	Number         string      `db:"number" json:"orderNumber"`
	Status         OrderStatus `db:"status" json:"status"`
	CustomerName   string      `db:"customer_name" json:"customerName"`
	Email          string      `db:"email" json:"email"`
	CardConfig     CardConfig  `db:"card_config" json:"cardConfig"`
	Pricing        Pricing     `db:"pricing" json:"pricing"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	TrackingNumber *string     `db:"tracking_number" json:"trackingNumber,omitempty"`
	EmailsSent     []EmailSend `json:"emailsSent"`
	Version        int64       `db:"version" json:"-"`
}

// Draft is the caller-supplied part of a new order.
type Draft struct {
	CustomerName   string     `json:"customerName"`
	Email          string     `json:"email"`
	CardConfig     CardConfig `json:"cardConfig"`
	Pricing        Pricing    `json:"pricing"`
	TrackingNumber *string    `json:"trackingNumber,omitempty"`
}

type SendResult struct {
	OrderID string           `json:"orderId"`
	Kind    NotificationKind `json:"emailType"`
	Success bool             `json:"success"`
	SentAt  time.Time        `json:"sentAt"`
	Error   string           `json:"error,omitempty"`
}
