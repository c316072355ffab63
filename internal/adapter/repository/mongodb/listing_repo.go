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

const listingCollectionName = "listings"

// ListingRepository implements domain.ListingRepository using MongoDB.
type ListingRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewListingRepository creates the repository and ensures its indexes.
func NewListingRepository(db *mongo.Database, log *logger.Logger) (*ListingRepository, error) {
	collection := db.Collection(listingCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "posted_by", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "is_auto_deleted", Value: 1}, {Key: "auto_delete_date", Value: 1}}}, // sweep eligibility scan
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Error("Failed to create indexes for listings collection", zap.Error(err))
	} else {
		log.Info("Ensured indexes for listings collection")
	}

	return &ListingRepository{
		collection: collection,
		logger:     log.Named("ListingRepository"),
	}, nil
}

// Create inserts a new listing.
func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	if listing.ID.IsZero() {
		listing.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, fromDomainListing(listing)); err != nil {
		r.logger.Error("Failed to insert listing", zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	r.logger.Debug("Listing inserted", zap.String("listing_id", listing.ID.Hex()))
	return nil
}

// Update overwrites the mutable fields of an existing listing.
func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	if listing.ID.IsZero() {
		return errors.New("cannot update listing without ID")
	}

	doc := fromDomainListing(listing)
	update := bson.M{
		"$set": bson.M{
			"title":            doc.Title,
			"make":             doc.Make,
			"model":            doc.Model,
			"year":             doc.Year,
			"price":            doc.Price,
			"description":      doc.Description,
			"status":           doc.Status,
			"images":           doc.Images,
			"rejection_reason": doc.RejectionReason,
			"approved_by":      doc.ApprovedBy,
			"approved_at":      doc.ApprovedAt,
			"sold_at":          doc.SoldAt,
			"auto_delete_date": doc.AutoDeleteDate,
			"updated_at":       doc.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": doc.ID}, update)
	if err != nil {
		r.logger.Error("Failed to update listing", zap.Error(err), zap.String("listing_id", doc.ID.Hex()))
		return fmt.Errorf("db update failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// GetByID retrieves a listing by id.
func (r *ListingRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Listing, error) {
	var doc listingDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrListingNotFound
		}
		r.logger.Error("Failed to get listing by ID", zap.Error(err), zap.String("listing_id", id.Hex()))
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomain(), nil
}

// FindByOwner returns the owner's listings, newest first.
func (r *ListingRepository) FindByOwner(ctx context.Context, ownerID string) ([]*domain.Listing, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"posted_by": ownerID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("db find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*listingDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db cursor all failed: %w", err)
	}

	listings := make([]*domain.Listing, len(docs))
	for i, doc := range docs {
		listings[i] = doc.toDomain()
	}
	return listings, nil
}

// buildListingQuery composes the live-catalog search filter.
func buildListingQuery(filter domain.ListingSearchFilter) bson.M {
	query := bson.M{}

	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Make != "" {
		query["make"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.Make) + "$", Options: "i"}
	}
	if filter.Model != "" {
		query["model"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.Model) + "$", Options: "i"}
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = []bson.M{
			{"title": pattern},
			{"make": pattern},
			{"model": pattern},
		}
	}
	if filter.PriceMin != nil || filter.PriceMax != nil {
		priceRange := bson.M{}
		if filter.PriceMin != nil {
			priceRange["$gte"] = *filter.PriceMin
		}
		if filter.PriceMax != nil {
			priceRange["$lte"] = *filter.PriceMax
		}
		query["price"] = priceRange
	}
	return query
}

// Search returns a page of catalog listings sorted by creation time descending,
// plus the total match count.
func (r *ListingRepository) Search(ctx context.Context, filter domain.ListingSearchFilter) ([]*domain.Listing, int64, error) {
	query := buildListingQuery(filter)

	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		findOptions.SetLimit(int64(filter.Limit))
		if filter.Page > 0 {
			findOptions.SetSkip(int64(filter.Page-1) * int64(filter.Limit))
		}
	}

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		r.logger.Error("Catalog search failed", zap.Error(err))
		return nil, 0, fmt.Errorf("db find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*listingDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("db cursor all failed: %w", err)
	}

	listings := make([]*domain.Listing, len(docs))
	for i, doc := range docs {
		listings[i] = doc.toDomain()
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("db count failed: %w", err)
	}
	return listings, total, nil
}

// FindSweepEligible returns sold, not auto-deleted listings whose auto-delete
// date lies before now.
func (r *ListingRepository) FindSweepEligible(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	query := bson.M{
		"status":           domain.StatusSold,
		"is_auto_deleted":  false,
		"auto_delete_date": bson.M{"$lt": now},
	}

	cursor, err := r.collection.Find(ctx, query)
	if err != nil {
		r.logger.Error("Sweep eligibility query failed", zap.Error(err))
		return nil, fmt.Errorf("db find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*listingDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db cursor all failed: %w", err)
	}

	listings := make([]*domain.Listing, len(docs))
	for i, doc := range docs {
		listings[i] = doc.toDomain()
	}
	r.logger.Debug("Sweep eligibility scan", zap.Int("eligible", len(listings)), zap.Time("now", now))
	return listings, nil
}

// DeleteActive performs the conditional removal of a listing. The filter on
// is_auto_deleted makes it a compare-and-delete: when a concurrent archive
// already removed the row, zero documents match and ErrAlreadyArchived is
// returned so the caller aborts its transaction instead of writing a
// duplicate history record.
func (r *ListingRepository) DeleteActive(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "is_auto_deleted": false})
	if err != nil {
		r.logger.Error("Failed to delete listing", zap.Error(err), zap.String("listing_id", id.Hex()))
		return fmt.Errorf("db delete failed: %w", err)
	}
	if result.DeletedCount == 0 {
		r.logger.Debug("Conditional delete matched nothing", zap.String("listing_id", id.Hex()))
		return domain.ErrAlreadyArchived
	}
	return nil
}
