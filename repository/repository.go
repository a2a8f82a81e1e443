// Package repository persists users, catalog, orders, addresses and payments in MongoDB.
// Consumers depend on the interfaces; the Mongo types stay unexported.
package repository

import (
	"context"

	"fashion-store/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStatusChanged means the order moved on between read and write
	ErrStatusChanged = errors.New("order status changed concurrently")
)

type Users interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.User, error)
	MarkVerified(ctx context.Context, id primitive.ObjectID) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, name, phone string) error
	UpdateImage(ctx context.Context, id primitive.ObjectID, image string) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
	SetRole(ctx context.Context, email, role string) error
}

type Products interface {
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DecrementStock takes qty units only if that many are left
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
	RestoreStock(ctx context.Context, id primitive.ObjectID, qty int) error
}

type Orders interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	// List returns every order, newest first; an empty status means all
	List(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	// UpdateStatus moves an order from one status to another and fails with
	// ErrStatusChanged if it is no longer in from.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) error
	SetPaymentID(ctx context.Context, id primitive.ObjectID, paymentID string) error
	SetPaymentToken(ctx context.Context, id primitive.ObjectID, token, redirectURL string) error
	// ResetPayment clears the stored token and puts the order back to status
	ResetPayment(ctx context.Context, id primitive.ObjectID, status models.OrderStatus) error
}

type Addresses interface {
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error)
	FindByID(ctx context.Context, userID, id primitive.ObjectID) (*models.Address, error)
	Default(ctx context.Context, userID primitive.ObjectID) (*models.Address, error)
	Create(ctx context.Context, address *models.Address) error
	Update(ctx context.Context, address *models.Address) error
	SetDefault(ctx context.Context, userID, id primitive.ObjectID) error
	Delete(ctx context.Context, userID, id primitive.ObjectID) error
}

type Payments interface {
	Record(ctx context.Context, payment *models.Payment) error
	ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.Payment, error)
}

// Store bundles the repositories of one database
type Store struct {
	Users     Users
	Products  Products
	Orders    Orders
	Addresses Addresses
	Payments  Payments

	db *mongo.Database
}

func New(db *mongo.Database) *Store {
	return &Store{
		Users:     &userRepository{collection: db.Collection("users")},
		Products:  &productRepository{collection: db.Collection("products")},
		Orders:    &orderRepository{collection: db.Collection("orders")},
		Addresses: &addressRepository{collection: db.Collection("addresses")},
		Payments:  &paymentRepository{collection: db.Collection("payments")},
		db:        db,
	}
}

// EnsureIndexes creates the indexes the queries rely on
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "verification_token", Value: 1}}},
		},
		"products": {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		"orders": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		"addresses": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_default", Value: -1}}},
		},
		"payments": {
			{Keys: bson.D{{Key: "order_id", Value: 1}}},
		},
	}
	for name, idx := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return errors.Wrapf(err, "create indexes on %s", name)
		}
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Wrap(ErrNotFound, what)
	}
	return errors.Wrapf(err, "find %s", what)
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor) ([]T, error) {
	defer cursor.Close(ctx)
	out := []T{}
	for cursor.Next(ctx) {
		var v T
		if err := cursor.Decode(&v); err != nil {
			return nil, errors.Wrap(err, "decode")
		}
		out = append(out, v)
	}
	return out, errors.Wrap(cursor.Err(), "cursor")
}
