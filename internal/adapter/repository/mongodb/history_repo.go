package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const historyCollectionName = "listing_history"

// HistoryRepository implements domain.HistoryRepository using MongoDB.
type HistoryRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewHistoryRepository creates the repository and ensures its indexes.
func NewHistoryRepository(db *mongo.Database, log *logger.Logger) (*HistoryRepository, error) {
	collection := db.Collection(historyCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "deleted_at", Value: -1}}},
		{Keys: bson.D{{Key: "listing_id", Value: 1}}, Options: options.Index().SetUnique(true)}, // one snapshot per removed listing
		{Keys: bson.D{{Key: "final_status", Value: 1}, {Key: "is_auto_deleted", Value: 1}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Error("Failed to create indexes for listing_history collection", zap.Error(err))
	} else {
		log.Info("Ensured indexes for listing_history collection")
	}

	return &HistoryRepository{
		collection: collection,
		logger:     log.Named("HistoryRepository"),
	}, nil
}

// Insert appends one archive snapshot. Records are never mutated afterward.
func (r *HistoryRepository) Insert(ctx context.Context, record *domain.HistoryRecord) error {
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, fromDomainHistory(record)); err != nil {
		r.logger.Error("Failed to insert history record",
			zap.Error(err), zap.String("listing_id", record.ListingID))
		return fmt.Errorf("db insert failed: %w", err)
	}
	return nil
}

// buildHistoryQuery composes the archive filter.
//
// The date range is an OR of two range sub-clauses: records that sold get
// filtered on final_selling_date, records that never sold fall back to
// deleted_at. Search is an OR across title, make and model. When both are
// present they combine as (date OR-group) AND (search OR-group); the groups
// are never merged into one flat OR.
func buildHistoryQuery(filter domain.HistoryFilter) bson.M {
	query := bson.M{}

	if filter.Status != "" && filter.Status != "all" {
		query["final_status"] = filter.Status
	}
	if filter.IsAutoDeleted != nil {
		query["is_auto_deleted"] = *filter.IsAutoDeleted
	}

	var andGroups []bson.M

	if filter.DateFrom != nil || filter.DateTo != nil {
		sellRange := bson.M{}
		delRange := bson.M{}
		if filter.DateFrom != nil {
			sellRange["$gte"] = *filter.DateFrom
			delRange["$gte"] = *filter.DateFrom
		}
		if filter.DateTo != nil {
			sellRange["$lte"] = *filter.DateTo
			delRange["$lte"] = *filter.DateTo
		}
		andGroups = append(andGroups, bson.M{"$or": []bson.M{
			{"final_selling_date": sellRange},
			{"final_selling_date": nil, "deleted_at": delRange},
		}})
	}

	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		andGroups = append(andGroups, bson.M{"$or": []bson.M{
			{"title": pattern},
			{"make": pattern},
			{"model": pattern},
		}})
	}

	if len(andGroups) == 1 {
		for k, v := range andGroups[0] {
			query[k] = v
		}
	} else if len(andGroups) > 1 {
		query["$and"] = andGroups
	}

	return query
}

// Find returns a page of history records sorted by deleted_at descending,
// plus the total match count.
func (r *HistoryRepository) Find(ctx context.Context, filter domain.HistoryFilter) ([]*domain.HistoryRecord, int64, error) {
	query := buildHistoryQuery(filter)

	findOptions := options.Find().SetSort(bson.D{{Key: "deleted_at", Value: -1}})
	if filter.Limit > 0 {
		findOptions.SetLimit(int64(filter.Limit))
		if filter.Page > 0 {
			findOptions.SetSkip(int64(filter.Page-1) * int64(filter.Limit))
		}
	}

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		r.logger.Error("Failed to query history", zap.Error(err))
		return nil, 0, fmt.Errorf("db find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*historyDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("db cursor all failed: %w", err)
	}

	records := make([]*domain.HistoryRecord, len(docs))
	for i, doc := range docs {
		records[i] = doc.toDomain()
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("db count failed: %w", err)
	}
	return records, total, nil
}

// GetByListingID retrieves the snapshot of one removed listing.
func (r *HistoryRepository) GetByListingID(ctx context.Context, listingID string) (*domain.HistoryRecord, error) {
	var doc historyDocument
	err := r.collection.FindOne(ctx, bson.M{"listing_id": listingID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrHistoryNotFound
		}
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomain(), nil
}
