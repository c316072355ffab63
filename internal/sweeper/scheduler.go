package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the sweep once a day at a configured wall-clock time.
// A mutex keeps runs single-flight: if a previous run is still going when the
// next tick fires, the tick is dropped rather than overlapped.
type Scheduler struct {
	cron      *cron.Cron
	sweeper   *Sweeper
	logger    *logger.Logger
	runMu     sync.Mutex
	isRunning bool
}

// NewScheduler creates a scheduler around the given sweeper.
func NewScheduler(s *Sweeper, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		sweeper: s,
		logger:  log.Named("SweepScheduler"),
	}
}

// Start registers the daily job. dailyTime is "HH:MM".
func (s *Scheduler) Start(dailyTime string) error {
	spec := s.parseDailyTime(dailyTime)

	_, err := s.cron.AddFunc(spec, func() {
		s.trigger(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register sweep cron job: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.Info("Sweep scheduler started", zap.String("daily_time", dailyTime), zap.String("cron", spec))
	return nil
}

// Stop stops the scheduler. Does not interrupt a run already in flight.
func (s *Scheduler) Stop() {
	if s.isRunning {
		s.cron.Stop()
		s.isRunning = false
		s.logger.Info("Sweep scheduler stopped")
	}
}

// RunNow triggers a sweep immediately (manual trigger from the admin API).
// Returns the result, or nil if a run was already in progress.
func (s *Scheduler) RunNow(ctx context.Context) (*Result, error) {
	if !s.runMu.TryLock() {
		s.logger.Warn("Sweep already in progress, manual trigger ignored")
		return nil, nil
	}
	defer s.runMu.Unlock()
	return s.sweeper.Run(ctx, time.Now().UTC())
}

func (s *Scheduler) trigger(ctx context.Context) {
	if !s.runMu.TryLock() {
		s.logger.Warn("Previous sweep still in progress, skipping this tick")
		return
	}
	defer s.runMu.Unlock()

	if _, err := s.sweeper.Run(ctx, time.Now().UTC()); err != nil {
		s.logger.Error("Scheduled sweep failed", zap.Error(err))
	}
}

// parseDailyTime converts "HH:MM" to a cron spec, defaulting to 03:00.
func (s *Scheduler) parseDailyTime(timeStr string) string {
	var hour, minute int
	if n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute); n == 2 && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}
	s.logger.Warn("Failed to parse sweep time, using default 03:00", zap.String("configured", timeStr))
	return "0 3 * * *"
}
