package issueregistry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultMongoCollection = "licensekit_issued"

// validCollectionName matches safe MongoDB collection names.
var validCollectionName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MongoOption configures a MongoRegistry.
type MongoOption func(*MongoRegistry)

// WithCollectionName sets the MongoDB collection name. Default: "licensekit_issued".
func WithCollectionName(name string) MongoOption {
	return func(r *MongoRegistry) {
		r.collectionName = name
	}
}

// MongoRegistry implements Registry using MongoDB.
type MongoRegistry struct {
	collection     *mongo.Collection
	collectionName string
}

// NewMongoRegistry creates a new MongoDB-backed issuance registry.
// It creates the necessary indexes on initialization.
func NewMongoRegistry(ctx context.Context, db *mongo.Database, opts ...MongoOption) (*MongoRegistry, error) {
	r := &MongoRegistry{
		collectionName: defaultMongoCollection,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !validCollectionName.MatchString(r.collectionName) {
		return nil, fmt.Errorf("invalid collection name %q: must match [a-zA-Z_][a-zA-Z0-9_]*", r.collectionName)
	}
	r.collection = db.Collection(r.collectionName)

	if err := r.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return r, nil
}

func (r *MongoRegistry) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "license_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "product_id", Value: 1},
				{Key: "issued_at", Value: 1},
			},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *MongoRegistry) Record(ctx context.Context, lic IssuedLicense) (*IssuedLicense, error) {
	now := time.Now()
	filter := bson.M{"license_id": lic.LicenseID}
	update := bson.M{
		"$set": bson.M{
			"product_id":   lic.ProductID,
			"product":      lic.Product,
			"customer":     lic.Customer,
			"email":        lic.Email,
			"type":         lic.Type,
			"quantity":     lic.Quantity,
			"expires_at":   lic.ExpiresAt,
			"license_path": lic.LicensePath,
			"issued_at":    now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var result IssuedLicense
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("record issuance: %w", err)
	}
	return &result, nil
}

func (r *MongoRegistry) Get(ctx context.Context, licenseID string) (*IssuedLicense, error) {
	var lic IssuedLicense
	err := r.collection.FindOne(ctx, bson.M{"license_id": licenseID}).Decode(&lic)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issuance: %w", err)
	}
	return &lic, nil
}

func (r *MongoRegistry) List(ctx context.Context, productID string) ([]IssuedLicense, error) {
	opts := options.Find().SetSort(bson.D{{Key: "issued_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list issuances: %w", err)
	}
	var lics []IssuedLicense
	if err := cursor.All(ctx, &lics); err != nil {
		return nil, fmt.Errorf("decode issuances: %w", err)
	}
	return lics, nil
}

func (r *MongoRegistry) Count(ctx context.Context, productID string) (int, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"product_id": productID})
	if err != nil {
		return 0, fmt.Errorf("count issuances: %w", err)
	}
	return int(count), nil
}

func (r *MongoRegistry) Prune(ctx context.Context, productID string, issuedBefore time.Time) (int, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{
		"product_id": productID,
		"issued_at":  bson.M{"$lt": issuedBefore},
	})
	if err != nil {
		return 0, fmt.Errorf("prune issuances: %w", err)
	}
	return int(result.DeletedCount), nil
}

func (r *MongoRegistry) Close(_ context.Context) error {
	return nil // user manages the mongo.Database lifecycle
}
