package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/carvio/listing-service/internal/platform/metrics"
	"go.uber.org/zap"
)

// Cause records which trigger drove an archive operation.
type Cause string

const (
	CauseManual Cause = "manual"
	CauseAuto   Cause = "auto"
)

// ArchiveResult reports the outcome of one archive-and-remove operation.
type ArchiveResult struct {
	HistoryID    string
	PurgedImages []string
	FailedImages []string
}

// LifecycleEngine converts a live listing into an immutable history record and
// removes it from the catalog. It is the sole writer of history records, the
// sole remover of listings and the only code path that may produce the
// terminal deleted state. Both manual deletion and the scheduled sweep
// converge here.
type LifecycleEngine struct {
	listings domain.ListingRepository
	history  domain.HistoryRepository
	owners   domain.OwnerIndexRepository
	images   domain.ImageStorage
	tx       domain.TxRunner
	cache    domain.ListingCache   // optional
	events   domain.EventPublisher // optional
	metrics  *metrics.Manager      // optional
	logger   *logger.Logger
	now      func() time.Time
}

// NewLifecycleEngine creates the engine. Cache, events and metrics may be nil.
func NewLifecycleEngine(
	listings domain.ListingRepository,
	history domain.HistoryRepository,
	owners domain.OwnerIndexRepository,
	images domain.ImageStorage,
	tx domain.TxRunner,
	cache domain.ListingCache,
	events domain.EventPublisher,
	m *metrics.Manager,
	log *logger.Logger,
) *LifecycleEngine {
	return &LifecycleEngine{
		listings: listings,
		history:  history,
		owners:   owners,
		images:   images,
		tx:       tx,
		cache:    cache,
		events:   events,
		metrics:  m,
		logger:   log.Named("LifecycleEngine"),
		now:      time.Now,
	}
}

// ArchiveAndRemove purges the listing's images best-effort, then atomically
// inserts the history snapshot, removes the listing from the catalog and pulls
// its id from the owner index.
//
// Image purge failures are collected into the result and logged, never
// returned: object-storage failure modes are independent of the catalog's
// consistency domain. If the transaction fails the listing stays fully live;
// images already purged are not restorable, which is an accepted and logged
// trade-off. A concurrent archive of the same listing makes the conditional
// delete match zero rows; the transaction aborts with ErrAlreadyArchived and
// no duplicate history record is committed.
func (e *LifecycleEngine) ArchiveAndRemove(ctx context.Context, listing *domain.Listing, actor *string, cause Cause) (*ArchiveResult, error) {
	e.logger.Info("Archiving listing",
		zap.String("listing_id", listing.ID.Hex()),
		zap.String("cause", string(cause)),
		zap.Stringp("actor", actor))

	purged, failed := e.images.DeleteMany(ctx, listing.Images)
	if len(failed) > 0 {
		e.logger.Warn("Some listing images could not be purged; abandoning them",
			zap.String("listing_id", listing.ID.Hex()),
			zap.Strings("failed_urls", failed))
		if e.metrics != nil {
			e.metrics.ImagePurgeFailuresTotal.Add(float64(len(failed)))
		}
	}

	deletedAt := e.now().UTC()
	record := domain.NewHistoryRecord(listing, actor, cause == CauseAuto, deletedAt)

	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.history.Insert(txCtx, record); err != nil {
			return fmt.Errorf("insert history record: %w", err)
		}
		if err := e.listings.DeleteActive(txCtx, listing.ID); err != nil {
			return err
		}
		// Idempotent: a deleted owner account or an already-absent id is a
		// no-op, not a reason to fail the archive.
		if err := e.owners.Pull(txCtx, listing.PostedBy, listing.ID.Hex()); err != nil {
			return fmt.Errorf("pull owner index: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyArchived) {
			e.logger.Info("Listing was archived concurrently, treating as no-op",
				zap.String("listing_id", listing.ID.Hex()),
				zap.String("cause", string(cause)))
			return nil, domain.ErrAlreadyArchived
		}
		e.logger.Error("Archive transaction failed, listing remains live",
			zap.String("listing_id", listing.ID.Hex()),
			zap.String("cause", string(cause)),
			zap.Strings("unrestorable_purged_images", purged),
			zap.Error(err))
		if e.metrics != nil {
			e.metrics.ArchiveFailuresTotal.WithLabelValues(string(cause)).Inc()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTransaction, err)
	}

	if e.cache != nil {
		if cerr := e.cache.Delete(ctx, listing.ID.Hex()); cerr != nil {
			e.logger.Warn("Failed to evict archived listing from cache",
				zap.String("listing_id", listing.ID.Hex()), zap.Error(cerr))
		}
	}

	if e.events != nil {
		eventData := map[string]interface{}{
			"listing_id":      listing.ID.Hex(),
			"seller_id":       listing.PostedBy,
			"history_id":      record.ID.Hex(),
			"final_status":    record.FinalStatus,
			"is_auto_deleted": record.IsAutoDeleted,
			"deleted_at":      deletedAt.Format(time.RFC3339Nano),
		}
		if perr := e.events.Publish(ctx, "listing.archived", eventData); perr != nil {
			e.logger.Warn("Failed to publish listing.archived event",
				zap.String("listing_id", listing.ID.Hex()), zap.Error(perr))
		}
	}

	if e.metrics != nil {
		e.metrics.ListingsArchivedTotal.WithLabelValues(string(cause)).Inc()
	}

	e.logger.Info("Listing archived and removed",
		zap.String("listing_id", listing.ID.Hex()),
		zap.String("history_id", record.ID.Hex()),
		zap.Int("purged_images", len(purged)),
		zap.Int("failed_images", len(failed)))

	return &ArchiveResult{
		HistoryID:    record.ID.Hex(),
		PurgedImages: purged,
		FailedImages: failed,
	}, nil
}
