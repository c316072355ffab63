package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/carvio/listing-service/internal/platform/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ListingUsecase implements the business logic for live listings: creation,
// edits, moderation, sale and the manual deletion entry point.
type ListingUsecase struct {
	repo      domain.ListingRepository
	owners    domain.OwnerIndexRepository
	images    domain.ImageStorage
	cache     domain.ListingCache
	events    domain.EventPublisher
	engine    *LifecycleEngine
	metrics   *metrics.Manager
	logger    *logger.Logger
	retention time.Duration
	now       func() time.Time
}

// NewListingUsecase creates a new ListingUsecase. Cache, events and metrics
// may be nil.
func NewListingUsecase(
	repo domain.ListingRepository,
	owners domain.OwnerIndexRepository,
	images domain.ImageStorage,
	cache domain.ListingCache,
	events domain.EventPublisher,
	engine *LifecycleEngine,
	m *metrics.Manager,
	log *logger.Logger,
	retention time.Duration,
) *ListingUsecase {
	return &ListingUsecase{
		repo:      repo,
		owners:    owners,
		images:    images,
		cache:     cache,
		events:    events,
		engine:    engine,
		metrics:   m,
		logger:    log.Named("ListingUsecase"),
		retention: retention,
		now:       time.Now,
	}
}

// CreateListingInput holds the fields a seller submits for a new listing.
type CreateListingInput struct {
	PostedBy    string
	Title       string
	Make        string
	Model       string
	Year        int32
	Price       float64
	Description string
}

// CreateListing creates a pending listing and indexes it under its owner.
func (uc *ListingUsecase) CreateListing(ctx context.Context, input CreateListingInput) (*domain.Listing, error) {
	uc.logger.Info("Creating listing",
		zap.String("posted_by", input.PostedBy),
		zap.String("title", input.Title))

	listing, err := domain.NewListing(input.PostedBy, input.Title, input.Make, input.Model, input.Year, input.Price, input.Description)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	if err := uc.repo.Create(ctx, listing); err != nil {
		uc.logger.Error("Failed to create listing", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to create listing: %v", domain.ErrRepository, err)
	}

	if err := uc.owners.Push(ctx, listing.PostedBy, listing.ID.Hex()); err != nil {
		uc.logger.Error("Failed to index listing under owner",
			zap.String("listing_id", listing.ID.Hex()),
			zap.String("owner_id", listing.PostedBy),
			zap.Error(err))
		return nil, fmt.Errorf("%w: failed to update owner index: %v", domain.ErrRepository, err)
	}

	uc.publish(ctx, "listing.created", map[string]interface{}{
		"listing_id": listing.ID.Hex(),
		"seller_id":  listing.PostedBy,
		"title":      listing.Title,
		"created_at": listing.CreatedAt.Format(time.RFC3339Nano),
	})
	if uc.metrics != nil {
		uc.metrics.ListingsCreatedTotal.Inc()
	}

	uc.logger.Info("Listing created", zap.String("listing_id", listing.ID.Hex()))
	return listing, nil
}

// GetListing retrieves a listing by id, through the cache when available.
func (uc *ListingUsecase) GetListing(ctx context.Context, id primitive.ObjectID) (*domain.Listing, error) {
	if uc.cache != nil {
		if cached, err := uc.cache.Get(ctx, id.Hex()); err != nil {
			uc.logger.Warn("Cache lookup failed", zap.String("listing_id", id.Hex()), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	listing, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, listing); err != nil {
			uc.logger.Warn("Failed to cache listing", zap.String("listing_id", id.Hex()), zap.Error(err))
		}
	}
	return listing, nil
}

// SearchListings queries the live catalog. Unless a status is requested, only
// approved listings are visible; pending and rejected ones stay private to
// their owner and the moderators.
func (uc *ListingUsecase) SearchListings(ctx context.Context, filter domain.ListingSearchFilter) ([]*domain.Listing, int64, error) {
	if filter.Status == "" {
		filter.Status = string(domain.StatusApproved)
	} else if !domain.ListingStatus(filter.Status).IsValid() {
		return nil, 0, fmt.Errorf("%w: invalid status filter %q", domain.ErrInvalidInput, filter.Status)
	}
	if filter.PriceMin != nil && filter.PriceMax != nil && *filter.PriceMax < *filter.PriceMin {
		return nil, 0, fmt.Errorf("%w: price range end precedes start", domain.ErrInvalidInput)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	} else if filter.Limit > 100 {
		filter.Limit = 100
	}

	return uc.repo.Search(ctx, filter)
}

// ListByOwner returns the owner's listings from the live catalog.
func (uc *ListingUsecase) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Listing, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: ownerID cannot be empty", domain.ErrInvalidInput)
	}
	return uc.repo.FindByOwner(ctx, ownerID)
}

// UpdateListingInput carries optional field edits. Nil means "leave as is".
type UpdateListingInput struct {
	Title       *string
	Make        *string
	Model       *string
	Year        *int32
	Price       *float64
	Description *string
}

// UpdateListing applies field edits. Only the owner may edit, and only while
// the listing is in a non-terminal state. Status never changes here.
func (uc *ListingUsecase) UpdateListing(ctx context.Context, id primitive.ObjectID, actorID string, input UpdateListingInput) (*domain.Listing, error) {
	listing, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.PostedBy != actorID {
		uc.logger.Warn("Forbidden listing edit attempt",
			zap.String("listing_id", id.Hex()),
			zap.String("owner_id", listing.PostedBy),
			zap.String("actor_id", actorID))
		return nil, domain.ErrForbidden
	}
	if !listing.Editable() {
		return nil, domain.ErrListingNotFound
	}

	updated := false
	if input.Title != nil && *input.Title != listing.Title {
		listing.Title = *input.Title
		updated = true
	}
	if input.Make != nil && *input.Make != listing.Make {
		listing.Make = *input.Make
		updated = true
	}
	if input.Model != nil && *input.Model != listing.Model {
		listing.Model = *input.Model
		updated = true
	}
	if input.Year != nil && *input.Year != listing.Year {
		listing.Year = *input.Year
		updated = true
	}
	if input.Price != nil {
		if *input.Price < 0 {
			return nil, fmt.Errorf("%w: price cannot be negative", domain.ErrInvalidInput)
		}
		if *input.Price != listing.Price {
			listing.Price = *input.Price
			updated = true
		}
	}
	if input.Description != nil && *input.Description != listing.Description {
		listing.Description = *input.Description
		updated = true
	}
	if !updated {
		return listing, nil
	}

	listing.UpdatedAt = uc.now().UTC()
	if err := uc.repo.Update(ctx, listing); err != nil {
		return nil, err
	}
	uc.invalidate(ctx, id.Hex())
	return listing, nil
}

// Approve moves a pending or rejected listing to approved. Moderation only;
// role enforcement happens at the transport layer.
func (uc *ListingUsecase) Approve(ctx context.Context, id primitive.ObjectID, adminID string) (*domain.Listing, error) {
	listing, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := listing.Approve(adminID, uc.now().UTC()); err != nil {
		return nil, err
	}
	if err := uc.repo.Update(ctx, listing); err != nil {
		return nil, err
	}
	uc.invalidate(ctx, id.Hex())
	uc.publish(ctx, "listing.approved", map[string]interface{}{
		"listing_id":  id.Hex(),
		"approved_by": adminID,
	})
	uc.logger.Info("Listing approved", zap.String("listing_id", id.Hex()), zap.String("admin_id", adminID))
	return listing, nil
}

// Reject moves a pending listing to rejected with a reason.
func (uc *ListingUsecase) Reject(ctx context.Context, id primitive.ObjectID, adminID, reason string) (*domain.Listing, error) {
	listing, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := listing.Reject(reason, uc.now().UTC()); err != nil {
		return nil, err
	}
	if err := uc.repo.Update(ctx, listing); err != nil {
		return nil, err
	}
	uc.invalidate(ctx, id.Hex())
	uc.publish(ctx, "listing.rejected", map[string]interface{}{
		"listing_id": id.Hex(),
		"reason":     reason,
	})
	uc.logger.Info("Listing rejected", zap.String("listing_id", id.Hex()), zap.String("reason", reason))
	return listing, nil
}

// MarkSold records the sale of an approved listing. Only the owner may do
// this. The auto-delete date is stamped here and nowhere else.
func (uc *ListingUsecase) MarkSold(ctx context.Context, id primitive.ObjectID, actorID string) (*domain.Listing, error) {
	listing, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.PostedBy != actorID {
		return nil, domain.ErrForbidden
	}
	if err := listing.MarkSold(uc.now().UTC(), uc.retention); err != nil {
		return nil, err
	}
	if err := uc.repo.Update(ctx, listing); err != nil {
		return nil, err
	}
	uc.invalidate(ctx, id.Hex())
	uc.publish(ctx, "listing.sold", map[string]interface{}{
		"listing_id":       id.Hex(),
		"seller_id":        listing.PostedBy,
		"sold_at":          listing.SoldAt.Format(time.RFC3339Nano),
		"auto_delete_date": listing.AutoDeleteDate.Format(time.RFC3339Nano),
	})
	uc.logger.Info("Listing marked sold",
		zap.String("listing_id", id.Hex()),
		zap.Timep("auto_delete_date", listing.AutoDeleteDate))
	return listing, nil
}

// UploadPhoto stores an image in object storage and appends its URL to the
// listing. Owner only, non-terminal states only.
func (uc *ListingUsecase) UploadPhoto(ctx context.Context, id primitive.ObjectID, actorID, fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty photo payload", domain.ErrInvalidInput)
	}
	listing, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if listing.PostedBy != actorID {
		return "", domain.ErrForbidden
	}
	if !listing.Editable() {
		return "", domain.ErrListingNotFound
	}

	url, err := uc.images.Upload(ctx, fileName, data)
	if err != nil {
		uc.logger.Error("Photo upload failed", zap.String("listing_id", id.Hex()), zap.Error(err))
		return "", err
	}

	listing.Images = append(listing.Images, url)
	listing.UpdatedAt = uc.now().UTC()
	if err := uc.repo.Update(ctx, listing); err != nil {
		return "", err
	}
	uc.invalidate(ctx, id.Hex())
	return url, nil
}

// DeleteListing is the manual deletion entry point, used for both owner and
// admin deletions. Authorization has already been resolved by the caller; this
// method performs none. Engine failures surface directly.
func (uc *ListingUsecase) DeleteListing(ctx context.Context, id primitive.ObjectID, actorID string) (*ArchiveResult, error) {
	uc.logger.Info("Manual deletion requested",
		zap.String("listing_id", id.Hex()),
		zap.String("actor_id", actorID))

	listing, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := uc.engine.ArchiveAndRemove(ctx, listing, &actorID, CauseManual)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyArchived) {
			// The sweep (or another request) won the race; from the caller's
			// point of view the listing is gone either way.
			return nil, domain.ErrListingNotFound
		}
		return nil, err
	}
	return result, nil
}

func (uc *ListingUsecase) invalidate(ctx context.Context, id string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Delete(ctx, id); err != nil {
		uc.logger.Warn("Failed to invalidate listing cache", zap.String("listing_id", id), zap.Error(err))
	}
}

func (uc *ListingUsecase) publish(ctx context.Context, subject string, data map[string]interface{}) {
	if uc.events == nil {
		return
	}
	if err := uc.events.Publish(ctx, subject, data); err != nil {
		uc.logger.Warn("Failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
