package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address is a saved shipping address. One address per user is the default.
type Address struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	Name       string             `bson:"name" json:"name"`
	Phone      string             `bson:"phone" json:"phone"`
	Address    string             `bson:"address" json:"address"`
	City       string             `bson:"city" json:"city"`
	Province   string             `bson:"province" json:"province"`
	PostalCode string             `bson:"postal_code" json:"postal_code"`
	Country    string             `bson:"country" json:"country"`
	IsDefault  bool               `bson:"is_default" json:"is_default"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// ShippingInfo is the address snapshot stored on an order
type ShippingInfo struct {
	Name       string `bson:"name" json:"name"`
	Phone      string `bson:"phone" json:"phone"`
	Address    string `bson:"address" json:"address"`
	City       string `bson:"city" json:"city"`
	Province   string `bson:"province" json:"province"`
	PostalCode string `bson:"postal_code" json:"postal_code"`
	Country    string `bson:"country" json:"country"`
}

// Complete reports whether every field a courier needs is filled in
func (s ShippingInfo) Complete() bool {
	return s.Name != "" && s.Phone != "" && s.Address != "" && s.City != "" &&
		s.Province != "" && s.PostalCode != ""
}

// Shipping converts a saved address into an order snapshot
func (a Address) Shipping() ShippingInfo {
	return ShippingInfo{
		Name:       a.Name,
		Phone:      a.Phone,
		Address:    a.Address,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
