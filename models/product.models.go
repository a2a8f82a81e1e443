package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product represents a catalog entry. Prices are in rupiah.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	Price       int64              `bson:"price" json:"price"`
	Stock       int                `bson:"stock" json:"stock"`
	Colors      []string           `bson:"colors,omitempty" json:"colors,omitempty"`
	Sizes       []string           `bson:"sizes,omitempty" json:"sizes,omitempty"`
	Images      []string           `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Image returns the first product image, if any
func (p Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductFilter narrows catalog listings
type ProductFilter struct {
	Category string
	Query    string
	Page     int
	Limit    int
}
