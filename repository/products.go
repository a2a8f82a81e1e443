package repository

import (
	"context"
	"regexp"
	"time"

	"fashion-store/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type productRepository struct {
	collection *mongo.Collection
}

func productQuery(f models.ProductFilter) bson.M {
	query := bson.M{}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.Query != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Query), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
			bson.M{"category": pattern},
		}
	}
	return query
}

// List returns one page of products matching filter and the total match count
func (r *productRepository) List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	query := productQuery(f)
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count products")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "find products")
	}
	products, err := decodeAll[models.Product](ctx, cursor)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *productRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, notFound(err, "product")
	}
	return &product, nil
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	now := time.Now()
	product.ID = primitive.NilObjectID
	product.CreatedAt, product.UpdatedAt = now, now
	res, err := r.collection.InsertOne(ctx, product)
	if err != nil {
		return errors.Wrap(err, "insert product")
	}
	product.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": product.ID}, bson.M{"$set": bson.M{
		"name":        product.Name,
		"description": product.Description,
		"category":    product.Category,
		"price":       product.Price,
		"stock":       product.Stock,
		"colors":      product.Colors,
		"sizes":       product.Sizes,
		"images":      product.Images,
		"updated_at":  product.UpdatedAt,
	}})
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(ErrNotFound, "product")
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if res.DeletedCount == 0 {
		return errors.Wrap(ErrNotFound, "product")
	}
	return nil
}

func (r *productRepository) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock": -qty}, "$set": bson.M{"updated_at": time.Now()}},
	)
	if err != nil {
		return errors.Wrap(err, "decrement stock")
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return errors.Wrapf(ErrInsufficientStock, "product %s", id.Hex())
	}
	return nil
}

func (r *productRepository) RestoreStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"stock": qty}, "$set": bson.M{"updated_at": time.Now()}},
	)
	return errors.Wrap(err, "restore stock")
}
