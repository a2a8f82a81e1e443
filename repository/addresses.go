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

// addressRepository keeps exactly one default address per user that has any
type addressRepository struct {
	collection *mongo.Collection
}

func (r *addressRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	opts := options.Find().SetSort(bson.D{{Key: "is_default", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find addresses")
	}
	return decodeAll[models.Address](ctx, cursor)
}

func (r *addressRepository) FindByID(ctx context.Context, userID, id primitive.ObjectID) (*models.Address, error) {
	var address models.Address
	if err := r.collection.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&address); err != nil {
		return nil, notFound(err, "address")
	}
	return &address, nil
}

func (r *addressRepository) Default(ctx context.Context, userID primitive.ObjectID) (*models.Address, error) {
	var address models.Address
	if err := r.collection.FindOne(ctx, bson.M{"user_id": userID, "is_default": true}).Decode(&address); err != nil {
		return nil, notFound(err, "default address")
	}
	return &address, nil
}

func (r *addressRepository) Create(ctx context.Context, address *models.Address) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": address.UserID})
	if err != nil {
		return errors.Wrap(err, "count addresses")
	}
	if count == 0 {
		address.IsDefault = true
	}

	now := time.Now()
	address.ID = primitive.NilObjectID
	address.CreatedAt, address.UpdatedAt = now, now
	res, err := r.collection.InsertOne(ctx, address)
	if err != nil {
		return errors.Wrap(err, "insert address")
	}
	address.ID = res.InsertedID.(primitive.ObjectID)

	if address.IsDefault && count > 0 {
		return r.clearOtherDefaults(ctx, address.UserID, address.ID)
	}
	return nil
}

// Update writes the address fields. Asking for default promotes the address;
// the current default cannot be demoted here.
func (r *addressRepository) Update(ctx context.Context, address *models.Address) error {
	address.UpdatedAt = time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": address.ID, "user_id": address.UserID},
		bson.M{"$set": bson.M{
			"name":        address.Name,
			"phone":       address.Phone,
			"address":     address.Address,
			"city":        address.City,
			"province":    address.Province,
			"postal_code": address.PostalCode,
			"country":     address.Country,
			"updated_at":  address.UpdatedAt,
		}},
	)
	if err != nil {
		return errors.Wrap(err, "update address")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(ErrNotFound, "address")
	}
	if address.IsDefault {
		return r.SetDefault(ctx, address.UserID, address.ID)
	}
	return nil
}

func (r *addressRepository) SetDefault(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_default": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return errors.Wrap(err, "set default address")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(ErrNotFound, "address")
	}
	return r.clearOtherDefaults(ctx, userID, id)
}

func (r *addressRepository) clearOtherDefaults(ctx context.Context, userID, keep primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"user_id": userID, "_id": bson.M{"$ne": keep}, "is_default": true},
		bson.M{"$set": bson.M{"is_default": false, "updated_at": time.Now()}},
	)
	return errors.Wrap(err, "clear default addresses")
}

// Delete removes an address; when it was the default the most recent
// remaining address takes over.
func (r *addressRepository) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	var deleted models.Address
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&deleted)
	if err != nil {
		return notFound(err, "address")
	}
	if !deleted.IsDefault {
		return nil
	}

	var next models.Address
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	err = r.collection.FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&next)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "find next default address")
	}
	return r.SetDefault(ctx, userID, next.ID)
}
