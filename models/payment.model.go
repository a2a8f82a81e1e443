package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment records one gateway transaction attempt for an order
type Payment struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OrderID           primitive.ObjectID `bson:"order_id" json:"order_id"`
	GatewayOrderID    string             `bson:"gateway_order_id" json:"gateway_order_id"`
	TransactionID     string             `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	TransactionStatus string             `bson:"transaction_status" json:"transaction_status"`
	PaymentType       string             `bson:"payment_type,omitempty" json:"payment_type,omitempty"`
	Amount            int64              `bson:"amount" json:"amount"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
}
