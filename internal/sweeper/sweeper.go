package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/listing/usecase"
	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/carvio/listing-service/internal/platform/metrics"
	"go.uber.org/zap"
)

// Sweeper removes sold listings whose retention window has elapsed. Each
// listing is archived through the lifecycle engine in its own atomic unit, so
// a crash mid-batch leaves only fully-archived or fully-untouched listings.
//
// Idempotence needs no bookkeeping: a processed listing is gone from the
// catalog, so re-running with the same clock re-evaluates to an empty
// eligible set.
type Sweeper struct {
	listings domain.ListingRepository
	engine   *usecase.LifecycleEngine
	metrics  *metrics.Manager
	logger   *logger.Logger
}

// Result reports one sweep run.
type Result struct {
	Eligible  int
	Processed int
	Failed    int
	Skipped   int // lost a race against a concurrent archive; benign
}

// New creates a Sweeper. Metrics may be nil.
func New(listings domain.ListingRepository, engine *usecase.LifecycleEngine, m *metrics.Manager, log *logger.Logger) *Sweeper {
	return &Sweeper{
		listings: listings,
		engine:   engine,
		metrics:  m,
		logger:   log.Named("Sweeper"),
	}
}

// Run scans for sweep-eligible listings as of now and archives each one. A
// single listing's failure is logged and counted; it never aborts the rest of
// the batch.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (*Result, error) {
	eligible, err := s.listings.FindSweepEligible(ctx, now)
	if err != nil {
		s.logger.Error("Sweep eligibility scan failed", zap.Error(err))
		return nil, err
	}

	result := &Result{Eligible: len(eligible)}
	if len(eligible) == 0 {
		s.logger.Info("Sweep found no eligible listings")
		return result, nil
	}

	s.logger.Info("Sweep starting", zap.Int("eligible", len(eligible)), zap.Time("now", now))

	for _, listing := range eligible {
		_, err := s.engine.ArchiveAndRemove(ctx, listing, nil, usecase.CauseAuto)
		switch {
		case err == nil:
			result.Processed++
		case errors.Is(err, domain.ErrAlreadyArchived):
			result.Skipped++
			if s.metrics != nil {
				s.metrics.SweepSkippedTotal.Inc()
			}
		default:
			result.Failed++
			s.logger.Error("Sweep failed to archive listing, continuing with the batch",
				zap.String("listing_id", listing.ID.Hex()),
				zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.SweepRunsTotal.Inc()
	}
	s.logger.Info("Sweep completed",
		zap.Int("eligible", result.Eligible),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))

	return result, nil
}
