package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/listing/usecase"
	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeStore is an in-memory stand-in for the catalog, archive and owner index,
// with the same conditional-delete behavior as the real repository.
type fakeStore struct {
	mu        sync.Mutex
	listings  map[primitive.ObjectID]*domain.Listing
	history   map[string]*domain.HistoryRecord
	owners    map[string][]string
	failOnIDs map[primitive.ObjectID]bool // history inserts that should fail
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		listings:  make(map[primitive.ObjectID]*domain.Listing),
		history:   make(map[string]*domain.HistoryRecord),
		owners:    make(map[string][]string),
		failOnIDs: make(map[primitive.ObjectID]bool),
	}
}

func (s *fakeStore) Create(_ context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ID] = l
	return nil
}

func (s *fakeStore) Update(_ context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[l.ID]; !ok {
		return domain.ErrListingNotFound
	}
	s.listings[l.ID] = l
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return l, nil
}

func (s *fakeStore) FindByOwner(_ context.Context, ownerID string) ([]*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Listing
	for _, l := range s.listings {
		if l.PostedBy == ownerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *fakeStore) Search(_ context.Context, _ domain.ListingSearchFilter) ([]*domain.Listing, int64, error) {
	return nil, 0, nil
}

func (s *fakeStore) FindSweepEligible(_ context.Context, now time.Time) ([]*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Listing
	for _, l := range s.listings {
		if l.SweepEligible(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteActive(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok || l.IsAutoDeleted {
		return domain.ErrAlreadyArchived
	}
	delete(s.listings, id)
	return nil
}

func (s *fakeStore) Insert(_ context.Context, record *domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := primitive.ObjectIDFromHex(record.ListingID)
	if err == nil && s.failOnIDs[id] {
		return errors.New("history insert failed")
	}
	if _, exists := s.history[record.ListingID]; exists {
		return errors.New("duplicate history record")
	}
	s.history[record.ListingID] = record
	return nil
}

func (s *fakeStore) Find(_ context.Context, _ domain.HistoryFilter) ([]*domain.HistoryRecord, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.HistoryRecord
	for _, r := range s.history {
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (s *fakeStore) GetByListingID(_ context.Context, listingID string) (*domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.history[listingID]
	if !ok {
		return nil, domain.ErrHistoryNotFound
	}
	return r, nil
}

func (s *fakeStore) Push(_ context.Context, ownerID, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[ownerID] = append(s.owners[ownerID], listingID)
	return nil
}

func (s *fakeStore) Pull(_ context.Context, ownerID, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.owners[ownerID]
	for i, id := range ids {
		if id == listingID {
			s.owners[ownerID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

type noopImages struct{}

func (noopImages) Upload(_ context.Context, _ string, _ []byte) (string, error) { return "", nil }

func (noopImages) DeleteMany(_ context.Context, urls []string) ([]string, []string) {
	return urls, nil
}

type directTx struct{}

func (directTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func addSoldListing(t *testing.T, store *fakeStore, soldAt time.Time, retention time.Duration) *domain.Listing {
	t.Helper()
	l, err := domain.NewListing("seller-1", "2018 Honda Civic", "Honda", "Civic", 2018, 13000, "")
	require.NoError(t, err)
	require.NoError(t, l.Approve("admin-1", soldAt.Add(-time.Hour)))
	require.NoError(t, l.MarkSold(soldAt, retention))
	require.NoError(t, store.Create(context.Background(), l))
	require.NoError(t, store.Push(context.Background(), l.PostedBy, l.ID.Hex()))
	return l
}

func newTestSweeper(store *fakeStore) *Sweeper {
	log := logger.NewLogger()
	engine := usecase.NewLifecycleEngine(store, store, store, noopImages{}, directTx{}, nil, nil, nil, log)
	return New(store, engine, nil, log)
}

func TestSweepArchivesExpiredListings(t *testing.T) {
	store := newFakeStore()
	retention := 7 * 24 * time.Hour
	soldAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := soldAt.Add(retention + time.Hour)

	expired := addSoldListing(t, store, soldAt, retention)
	fresh := addSoldListing(t, store, now.Add(-time.Hour), retention)

	result, err := newTestSweeper(store).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Eligible)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Failed)

	_, err = store.GetByID(context.Background(), expired.ID)
	assert.True(t, errors.Is(err, domain.ErrListingNotFound))
	_, err = store.GetByID(context.Background(), fresh.ID)
	assert.NoError(t, err)

	record, err := store.GetByListingID(context.Background(), expired.ID.Hex())
	require.NoError(t, err)
	assert.True(t, record.IsAutoDeleted)
	assert.Nil(t, record.DeletedBy)
	assert.Equal(t, domain.StatusSold, record.FinalStatus)
	require.NotNil(t, record.FinalSellingDate)
	assert.Equal(t, soldAt, *record.FinalSellingDate)

	assert.NotContains(t, store.owners["seller-1"], expired.ID.Hex())
	assert.Contains(t, store.owners["seller-1"], fresh.ID.Hex())
}

func TestSweepIsIdempotent(t *testing.T) {
	store := newFakeStore()
	retention := 7 * 24 * time.Hour
	soldAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := soldAt.Add(retention + time.Hour)

	addSoldListing(t, store, soldAt, retention)
	sweeper := newTestSweeper(store)

	first, err := sweeper.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)

	second, err := sweeper.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Eligible)
	assert.Equal(t, 0, second.Processed)
	assert.Len(t, store.history, 1)
}

func TestSweepOneFailureDoesNotAbortBatch(t *testing.T) {
	store := newFakeStore()
	retention := 7 * 24 * time.Hour
	soldAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := soldAt.Add(retention + time.Hour)

	broken := addSoldListing(t, store, soldAt, retention)
	healthy := addSoldListing(t, store, soldAt, retention)
	store.failOnIDs[broken.ID] = true

	result, err := newTestSweeper(store).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Eligible)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)

	// The failed listing stays fully live and is picked up again next run.
	_, err = store.GetByID(context.Background(), broken.ID)
	assert.NoError(t, err)
	_, err = store.GetByID(context.Background(), healthy.ID)
	assert.True(t, errors.Is(err, domain.ErrListingNotFound))

	store.failOnIDs[broken.ID] = false
	retry, err := newTestSweeper(store).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Processed)
}

func TestSweepSkipsConcurrentlyArchivedListing(t *testing.T) {
	store := newFakeStore()
	retention := 7 * 24 * time.Hour
	soldAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := soldAt.Add(retention + time.Hour)

	stale := addSoldListing(t, store, soldAt, retention)

	log := logger.NewLogger()
	engine := usecase.NewLifecycleEngine(store, store, store, noopImages{}, directTx{}, nil, nil, nil, log)
	sweeper := New(staleEligibilityRepo{store, stale}, engine, nil, log)

	// Someone deletes the listing between the eligibility scan and the archive.
	require.NoError(t, store.DeleteActive(context.Background(), stale.ID))

	result, err := sweeper.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Eligible)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Skipped)
}

// staleEligibilityRepo returns a fixed listing from the eligibility scan even
// after it has been removed, modeling a scan that raced a concurrent archive.
type staleEligibilityRepo struct {
	*fakeStore
	stale *domain.Listing
}

func (r staleEligibilityRepo) FindSweepEligible(_ context.Context, _ time.Time) ([]*domain.Listing, error) {
	return []*domain.Listing{r.stale}, nil
}
