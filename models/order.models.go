package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	StatusAwaitingPayment OrderStatus = "awaiting_payment" // hosted payment not finished yet
	StatusPending         OrderStatus = "pending"
	StatusProcessing      OrderStatus = "processing"
	StatusPaid            OrderStatus = "paid"
	StatusShipped         OrderStatus = "shipped"
	StatusDelivered       OrderStatus = "delivered"
	StatusCompleted       OrderStatus = "completed"
	StatusCancelled       OrderStatus = "cancelled"
	StatusFailed          OrderStatus = "failed"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusAwaitingPayment: {StatusPending, StatusProcessing, StatusPaid, StatusCancelled, StatusFailed},
	StatusPending:         {StatusAwaitingPayment, StatusProcessing, StatusPaid, StatusCancelled, StatusFailed},
	StatusProcessing:      {StatusPaid, StatusShipped, StatusCancelled, StatusFailed},
	StatusPaid:            {StatusShipped, StatusCancelled},
	StatusShipped:         {StatusDelivered},
	StatusDelivered:       {StatusCompleted},
	StatusFailed:          {StatusAwaitingPayment, StatusCancelled},
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusAwaitingPayment, StatusPending, StatusProcessing, StatusPaid, StatusShipped,
		StatusDelivered, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Writing the current status again is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanRestartPayment reports whether a new payment attempt may be started
func (s OrderStatus) CanRestartPayment() bool {
	return s == StatusAwaitingPayment || s == StatusPending || s == StatusFailed
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "cod"
	PaymentMidtrans PaymentMethod = "midtrans"
	PaymentCard     PaymentMethod = "card" // kept for old orders, not offered at checkout
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentMidtrans || m == PaymentCard
}

// ShippingMethod is a delivery option offered at checkout
type ShippingMethod string

const (
	ShippingRegular ShippingMethod = "regular"
	ShippingExpress ShippingMethod = "express"
)

var shippingCosts = map[ShippingMethod]int64{
	ShippingRegular: 20000,
	ShippingExpress: 50000,
}

func (m ShippingMethod) Valid() bool {
	_, ok := shippingCosts[m]
	return ok
}

// Cost in rupiah; unknown methods cost nothing and must be rejected by Valid
func (m ShippingMethod) Cost() int64 {
	return shippingCosts[m]
}

// ShippingMethods lists the options in display order
func ShippingMethods() []ShippingMethod {
	return []ShippingMethod{ShippingRegular, ShippingExpress}
}

// OrderItem is an immutable line on an order
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Name      string             `bson:"name" json:"name"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Price     int64              `bson:"price" json:"price"`
	Color     string             `bson:"color,omitempty" json:"color,omitempty"`
	Size      string             `bson:"size,omitempty" json:"size,omitempty"`
}

// Order represents a user's order
type Order struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	UserID         primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Items          []OrderItem         `bson:"items" json:"items"`
	Status         OrderStatus         `bson:"status" json:"status"`
	Subtotal       int64               `bson:"subtotal" json:"subtotal"`
	ShippingCost   int64               `bson:"shipping_cost" json:"shipping_cost"`
	ShippingMethod ShippingMethod      `bson:"shipping_method" json:"shipping_method"`
	Total          int64               `bson:"total" json:"total"`
	PaymentMethod  PaymentMethod       `bson:"payment_method" json:"payment_method"`
	PaymentID      string              `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	PaymentToken   string              `bson:"payment_token,omitempty" json:"payment_token,omitempty"`
	PaymentURL     string              `bson:"payment_url,omitempty" json:"payment_url,omitempty"`
	AddressID      *primitive.ObjectID `bson:"address_id,omitempty" json:"address_id,omitempty"`
	Shipping       ShippingInfo        `bson:"shipping" json:"shipping"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updated_at"`
}

// OwnedBy reports whether the order belongs to userID
func (o Order) OwnedBy(userID primitive.ObjectID) bool {
	return o.UserID == userID
}
