package usecase

import (
	"context"
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if l, ok := args.Get(0).(*domain.Listing); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockListingRepository) FindByOwner(ctx context.Context, ownerID string) ([]*domain.Listing, error) {
	args := m.Called(ctx, ownerID)
	if l, ok := args.Get(0).([]*domain.Listing); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockListingRepository) Search(ctx context.Context, filter domain.ListingSearchFilter) ([]*domain.Listing, int64, error) {
	args := m.Called(ctx, filter)
	if l, ok := args.Get(0).([]*domain.Listing); ok {
		return l, args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

func (m *MockListingRepository) FindSweepEligible(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	args := m.Called(ctx, now)
	if l, ok := args.Get(0).([]*domain.Listing); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockListingRepository) DeleteActive(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Insert(ctx context.Context, record *domain.HistoryRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockHistoryRepository) Find(ctx context.Context, filter domain.HistoryFilter) ([]*domain.HistoryRecord, int64, error) {
	args := m.Called(ctx, filter)
	if r, ok := args.Get(0).([]*domain.HistoryRecord); ok {
		return r, args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

func (m *MockHistoryRepository) GetByListingID(ctx context.Context, listingID string) (*domain.HistoryRecord, error) {
	args := m.Called(ctx, listingID)
	if r, ok := args.Get(0).(*domain.HistoryRecord); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockOwnerIndexRepository struct {
	mock.Mock
}

func (m *MockOwnerIndexRepository) Push(ctx context.Context, ownerID, listingID string) error {
	args := m.Called(ctx, ownerID, listingID)
	return args.Error(0)
}

func (m *MockOwnerIndexRepository) Pull(ctx context.Context, ownerID, listingID string) error {
	args := m.Called(ctx, ownerID, listingID)
	return args.Error(0)
}

type MockImageStorage struct {
	mock.Mock
}

func (m *MockImageStorage) Upload(ctx context.Context, fileName string, data []byte) (string, error) {
	args := m.Called(ctx, fileName, data)
	return args.String(0), args.Error(1)
}

func (m *MockImageStorage) DeleteMany(ctx context.Context, urls []string) ([]string, []string) {
	args := m.Called(ctx, urls)
	deleted, _ := args.Get(0).([]string)
	failed, _ := args.Get(1).([]string)
	return deleted, failed
}

// passthroughTxRunner runs the function directly, as if the transaction always
// commits when fn succeeds and rolls back when it fails.
type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// failingTxRunner aborts every transaction with the given error without
// invoking fn, simulating a commit failure after partial work.
type failingTxRunner struct {
	err error
}

func (r failingTxRunner) WithTransaction(_ context.Context, _ func(ctx context.Context) error) error {
	return r.err
}
