package repository

import (
	"context"
	"time"

	"fashion-store/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type userRepository struct {
	collection *mongo.Collection
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"email": user.Email})
	if err != nil {
		return errors.Wrap(err, "count users")
	}
	if count > 0 {
		return errors.Wrapf(ErrDuplicate, "user %s", user.Email)
	}

	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	res, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(ErrDuplicate, "user %s", user.Email)
		}
		return errors.Wrap(err, "insert user")
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepository) FindByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, errors.Wrap(ErrNotFound, "user")
	}
	return r.findOne(ctx, bson.M{"verification_token": token})
}

func (r *userRepository) set(ctx context.Context, filter bson.M, fields bson.M) error {
	fields["updated_at"] = time.Now()
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return errors.Wrap(err, "update user")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(ErrNotFound, "user")
	}
	return nil
}

func (r *userRepository) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	return r.set(ctx, bson.M{"_id": id}, bson.M{"is_verified": true, "verification_token": ""})
}

func (r *userRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, name, phone string) error {
	return r.set(ctx, bson.M{"_id": id}, bson.M{"name": name, "phone": phone})
}

func (r *userRepository) UpdateImage(ctx context.Context, id primitive.ObjectID, image string) error {
	return r.set(ctx, bson.M{"_id": id}, bson.M{"image": image})
}

func (r *userRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return r.set(ctx, bson.M{"_id": id}, bson.M{"password": hash})
}

func (r *userRepository) SetRole(ctx context.Context, email, role string) error {
	return r.set(ctx, bson.M{"email": email}, bson.M{"role": role})
}
