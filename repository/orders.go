package repository

import (
	"context"
	"time"

	"fashion-store/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type orderRepository struct {
	collection *mongo.Collection
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	res, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}
	order.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, notFound(err, "order")
	}
	return &order, nil
}

func (r *orderRepository) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find orders")
	}
	return decodeAll[models.Order](ctx, cursor)
}

func (r *orderRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *orderRepository) List(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now()}},
	)
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return errors.Wrapf(ErrStatusChanged, "order %s", id.Hex())
	}
	return nil
}

func (r *orderRepository) set(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(ErrNotFound, "order")
	}
	return nil
}

func (r *orderRepository) SetPaymentID(ctx context.Context, id primitive.ObjectID, paymentID string) error {
	return r.set(ctx, id, bson.M{"$set": bson.M{"payment_id": paymentID, "updated_at": time.Now()}})
}

func (r *orderRepository) SetPaymentToken(ctx context.Context, id primitive.ObjectID, token, redirectURL string) error {
	return r.set(ctx, id, bson.M{"$set": bson.M{
		"payment_token": token,
		"payment_url":   redirectURL,
		"updated_at":    time.Now(),
	}})
}

func (r *orderRepository) ResetPayment(ctx context.Context, id primitive.ObjectID, status models.OrderStatus) error {
	return r.set(ctx, id, bson.M{
		"$set":   bson.M{"status": status, "updated_at": time.Now()},
		"$unset": bson.M{"payment_token": "", "payment_url": ""},
	})
}
