package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is the MongoDB collection holding account documents.
const CollectionName = "users"

type MongoRepository struct {
	c *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{c: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique email index and the sparse token indexes.
// It is idempotent.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "verificationToken", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("verification_token"),
		},
		{
			Keys:    bson.D{{Key: "resetPasswordToken", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("reset_password_token"),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) FindByVerificationToken(ctx context.Context, code string, now time.Time) (models.Account, error) {
	if code == "" {
		return models.Account{}, common.ErrorNotFound
	}
	return r.findOne(ctx, bson.M{
		"verificationToken":          code,
		"verificationTokenExpiresAt": bson.M{"$gt": now},
	})
}

func (r *MongoRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (models.Account, error) {
	if token == "" {
		return models.Account{}, common.ErrorNotFound
	}
	return r.findOne(ctx, bson.M{
		"resetPasswordToken":     token,
		"resetPasswordExpiresAt": bson.M{"$gt": now},
	})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (models.Account, error) {
	var a models.Account
	err := r.c.FindOne(ctx, filter).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Account{}, common.ErrorNotFound
		}
		return models.Account{}, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *MongoRepository) Create(ctx context.Context, account models.Account) error {
	if _, err := r.c.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *MongoRepository) TouchLogin(ctx context.Context, id string, now time.Time) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"lastLogin": now, "updatedAt": now},
	})
}

func (r *MongoRepository) MarkVerified(ctx context.Context, id, code string, now time.Time) (models.Account, error) {
	filter := bson.M{
		"_id":                        id,
		"verificationToken":          code,
		"verificationTokenExpiresAt": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": now},
		"$unset": bson.M{"verificationToken": "", "verificationTokenExpiresAt": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var a models.Account
	if err := r.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Account{}, common.ErrorNotFound
		}
		return models.Account{}, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *MongoRepository) SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"resetPasswordToken":     token,
			"resetPasswordExpiresAt": expiresAt,
			"updatedAt":              now,
		},
	})
}

func (r *MongoRepository) ConsumeReset(ctx context.Context, id, token, passwordHash string, now time.Time) error {
	filter := bson.M{
		"_id":                    id,
		"resetPasswordToken":     token,
		"resetPasswordExpiresAt": bson.M{"$gt": now},
	}
	return r.updateOne(ctx, filter, bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": now},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpiresAt": ""},
	})
}

func (r *MongoRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := r.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}
