package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type singleListingRepo struct {
	listing *domain.Listing
}

func (r singleListingRepo) Create(context.Context, *domain.Listing) error { return nil }
func (r singleListingRepo) Update(context.Context, *domain.Listing) error { return nil }

func (r singleListingRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Listing, error) {
	if r.listing != nil && r.listing.ID == id {
		return r.listing, nil
	}
	return nil, domain.ErrListingNotFound
}

func (r singleListingRepo) FindByOwner(context.Context, string) ([]*domain.Listing, error) {
	return nil, nil
}

func (r singleListingRepo) Search(context.Context, domain.ListingSearchFilter) ([]*domain.Listing, int64, error) {
	return nil, 0, nil
}

func (r singleListingRepo) FindSweepEligible(context.Context, time.Time) ([]*domain.Listing, error) {
	return nil, nil
}

func (r singleListingRepo) DeleteActive(context.Context, primitive.ObjectID) error { return nil }

func TestGateCheck(t *testing.T) {
	l, err := domain.NewListing("seller-1", "2019 Toyota Camry", "Toyota", "Camry", 2019, 15500, "")
	require.NoError(t, err)
	gate := NewGate(singleListingRepo{listing: l}, logger.NewLogger())

	t.Run("admin may delete anything", func(t *testing.T) {
		allowed, err := gate.Check(context.Background(), primitive.NewObjectID(), "admin-1", RoleAdmin)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("owner may delete own listing", func(t *testing.T) {
		allowed, err := gate.Check(context.Background(), l.ID, "seller-1", "user")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("stranger may not", func(t *testing.T) {
		allowed, err := gate.Check(context.Background(), l.ID, "someone-else", "user")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("missing listing propagates not found", func(t *testing.T) {
		_, err := gate.Check(context.Background(), primitive.NewObjectID(), "seller-1", "user")
		assert.True(t, errors.Is(err, domain.ErrListingNotFound))
	})
}
