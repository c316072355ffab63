package mongodb

import (
	"context"
	"fmt"

	"github.com/carvio/listing-service/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const usersCollectionName = "users"

// OwnerIndexRepository maintains the posted_listings array on user documents.
// During the archive transaction it is called with the session context, so the
// pull commits or rolls back together with the history insert and the listing
// removal.
type OwnerIndexRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewOwnerIndexRepository creates the repository.
func NewOwnerIndexRepository(db *mongo.Database, log *logger.Logger) *OwnerIndexRepository {
	return &OwnerIndexRepository{
		collection: db.Collection(usersCollectionName),
		logger:     log.Named("OwnerIndexRepository"),
	}
}

// Push records a listing id under its owner. $addToSet keeps the index free
// of duplicates even on retries.
func (r *OwnerIndexRepository) Push(ctx context.Context, ownerID, listingID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": ownerID},
		bson.M{"$addToSet": bson.M{"posted_listings": listingID}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		r.logger.Error("Failed to push listing into owner index",
			zap.String("owner_id", ownerID), zap.String("listing_id", listingID), zap.Error(err))
		return fmt.Errorf("db owner index push failed: %w", err)
	}
	return nil
}

// Pull removes a listing id from its owner's index. Idempotent: a missing
// owner document (deleted account) or an id that is already absent is a
// no-op, never an error.
func (r *OwnerIndexRepository) Pull(ctx context.Context, ownerID, listingID string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": ownerID},
		bson.M{"$pull": bson.M{"posted_listings": listingID}},
	)
	if err != nil {
		r.logger.Error("Failed to pull listing from owner index",
			zap.String("owner_id", ownerID), zap.String("listing_id", listingID), zap.Error(err))
		return fmt.Errorf("db owner index pull failed: %w", err)
	}
	if result.MatchedCount == 0 {
		r.logger.Debug("Owner document absent during index pull, treating as no-op",
			zap.String("owner_id", ownerID), zap.String("listing_id", listingID))
	}
	return nil
}
