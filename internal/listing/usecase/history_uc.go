package usecase

import (
	"context"
	"fmt"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/platform/logger"
	"go.uber.org/zap"
)

// HistoryUsecase exposes the read model over the archive, consumed by the
// admin surface.
type HistoryUsecase struct {
	repo   domain.HistoryRepository
	logger *logger.Logger
}

// NewHistoryUsecase creates a new HistoryUsecase.
func NewHistoryUsecase(repo domain.HistoryRepository, log *logger.Logger) *HistoryUsecase {
	return &HistoryUsecase{
		repo:   repo,
		logger: log.Named("HistoryUsecase"),
	}
}

// Query returns a page of history records sorted by deletion time descending,
// plus the total match count.
func (uc *HistoryUsecase) Query(ctx context.Context, filter domain.HistoryFilter) ([]*domain.HistoryRecord, int64, error) {
	if filter.Status != "" && filter.Status != "all" {
		if !domain.ListingStatus(filter.Status).IsValid() {
			return nil, 0, fmt.Errorf("%w: invalid status filter %q", domain.ErrInvalidInput, filter.Status)
		}
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, 0, fmt.Errorf("%w: date range end precedes start", domain.ErrInvalidInput)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	} else if filter.Limit > 100 {
		filter.Limit = 100
	}

	uc.logger.Debug("Querying listing history",
		zap.String("status", filter.Status),
		zap.String("search", filter.Search),
		zap.Int32("page", filter.Page),
		zap.Int32("limit", filter.Limit))

	return uc.repo.Find(ctx, filter)
}

// GetByListingID returns the archive snapshot of one removed listing.
func (uc *HistoryUsecase) GetByListingID(ctx context.Context, listingID string) (*domain.HistoryRecord, error) {
	if listingID == "" {
		return nil, fmt.Errorf("%w: listingID cannot be empty", domain.ErrInvalidInput)
	}
	return uc.repo.GetByListingID(ctx, listingID)
}
