package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHistoryQuery(t *testing.T) {
	t.Run("rejects unknown status", func(t *testing.T) {
		uc := NewHistoryUsecase(new(MockHistoryRepository), logger.NewLogger())
		_, _, err := uc.Query(context.Background(), domain.HistoryFilter{Status: "vanished"})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects inverted date range", func(t *testing.T) {
		uc := NewHistoryUsecase(new(MockHistoryRepository), logger.NewLogger())
		from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
		to := from.Add(-time.Hour)
		_, _, err := uc.Query(context.Background(), domain.HistoryFilter{DateFrom: &from, DateTo: &to})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("clamps pagination", func(t *testing.T) {
		repo := new(MockHistoryRepository)
		repo.On("Find", mock.Anything, mock.MatchedBy(func(f domain.HistoryFilter) bool {
			return f.Page == 1 && f.Limit == 100
		})).Return([]*domain.HistoryRecord{}, int64(0), nil).Once()

		uc := NewHistoryUsecase(repo, logger.NewLogger())
		_, _, err := uc.Query(context.Background(), domain.HistoryFilter{Page: -3, Limit: 5000})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("defaults the page size", func(t *testing.T) {
		repo := new(MockHistoryRepository)
		repo.On("Find", mock.Anything, mock.MatchedBy(func(f domain.HistoryFilter) bool {
			return f.Page == 1 && f.Limit == 20
		})).Return([]*domain.HistoryRecord{}, int64(0), nil).Once()

		uc := NewHistoryUsecase(repo, logger.NewLogger())
		_, _, err := uc.Query(context.Background(), domain.HistoryFilter{})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("status all passes through", func(t *testing.T) {
		repo := new(MockHistoryRepository)
		repo.On("Find", mock.Anything, mock.MatchedBy(func(f domain.HistoryFilter) bool {
			return f.Status == "all"
		})).Return([]*domain.HistoryRecord{}, int64(0), nil).Once()

		uc := NewHistoryUsecase(repo, logger.NewLogger())
		_, _, err := uc.Query(context.Background(), domain.HistoryFilter{Status: "all"})
		require.NoError(t, err)
	})
}

func TestHistoryGetByListingID(t *testing.T) {
	t.Run("requires an id", func(t *testing.T) {
		uc := NewHistoryUsecase(new(MockHistoryRepository), logger.NewLogger())
		_, err := uc.GetByListingID(context.Background(), "")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("missing record surfaces as not found", func(t *testing.T) {
		repo := new(MockHistoryRepository)
		repo.On("GetByListingID", mock.Anything, "deadbeef").Return(nil, domain.ErrHistoryNotFound).Once()

		uc := NewHistoryUsecase(repo, logger.NewLogger())
		_, err := uc.GetByListingID(context.Background(), "deadbeef")
		assert.True(t, errors.Is(err, domain.ErrHistoryNotFound))
	})
}
