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

type paymentRepository struct {
	collection *mongo.Collection
}

func (r *paymentRepository) Record(ctx context.Context, payment *models.Payment) error {
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	res, err := r.collection.InsertOne(ctx, payment)
	if err != nil {
		return errors.Wrap(err, "insert payment")
	}
	payment.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find payments")
	}
	return decodeAll[models.Payment](ctx, cursor)
}
