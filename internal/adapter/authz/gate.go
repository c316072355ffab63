package authz

import (
	"context"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RoleAdmin marks users allowed to delete any listing.
const RoleAdmin = "admin"

// Gate decides whether a user may delete a listing: admins always may, other
// users only when they own it. The decision happens here, outside the
// lifecycle core.
type Gate struct {
	listings domain.ListingRepository
	logger   *logger.Logger
}

// NewGate creates the authorization gate.
func NewGate(listings domain.ListingRepository, log *logger.Logger) *Gate {
	return &Gate{
		listings: listings,
		logger:   log.Named("AuthzGate"),
	}
}

// Check reports whether the user may delete the listing. A missing listing
// propagates ErrListingNotFound so callers answer 404 instead of 403.
func (g *Gate) Check(ctx context.Context, listingID primitive.ObjectID, userID, role string) (bool, error) {
	if role == RoleAdmin {
		return true, nil
	}

	listing, err := g.listings.GetByID(ctx, listingID)
	if err != nil {
		return false, err
	}
	if listing.PostedBy != userID {
		g.logger.Debug("Deletion denied, caller is not the owner",
			zap.String("listing_id", listingID.Hex()), zap.String("user_id", userID))
		return false, nil
	}
	return true, nil
}
