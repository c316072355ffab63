package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingSearchFilter narrows a live-catalog search. Zero values disable the
// corresponding clause.
type ListingSearchFilter struct {
	Status   string
	Make     string
	Model    string
	Search   string // case-insensitive substring over title, make, model
	PriceMin *float64
	PriceMax *float64
	Page     int32
	Limit    int32
}

// ListingRepository is the persistence port for the live catalog.
type ListingRepository interface {
	Create(ctx context.Context, listing *Listing) error
	Update(ctx context.Context, listing *Listing) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*Listing, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*Listing, error)
	Search(ctx context.Context, filter ListingSearchFilter) ([]*Listing, int64, error)
	// FindSweepEligible returns sold, not yet auto-deleted listings whose
	// auto-delete date lies before now.
	FindSweepEligible(ctx context.Context, now time.Time) ([]*Listing, error)
	// DeleteActive removes the listing only if it is still present and not
	// auto-deleted. When a concurrent archive already removed it, the call
	// returns ErrAlreadyArchived so the caller can abort without producing a
	// duplicate history record.
	DeleteActive(ctx context.Context, id primitive.ObjectID) error
}

// HistoryRepository is the persistence port for the immutable archive.
type HistoryRepository interface {
	Insert(ctx context.Context, record *HistoryRecord) error
	Find(ctx context.Context, filter HistoryFilter) ([]*HistoryRecord, int64, error)
	GetByListingID(ctx context.Context, listingID string) (*HistoryRecord, error)
}

// OwnerIndexRepository maintains the per-user reverse index of posted listing
// ids. Pull is idempotent: a missing owner or an absent id is a no-op.
type OwnerIndexRepository interface {
	Push(ctx context.Context, ownerID, listingID string) error
	Pull(ctx context.Context, ownerID, listingID string) error
}

// ImageStorage abstracts the external object storage holding listing images.
// DeleteMany is best-effort: every URL succeeds or fails independently and the
// call never returns an error.
type ImageStorage interface {
	Upload(ctx context.Context, fileName string, data []byte) (string, error)
	DeleteMany(ctx context.Context, urls []string) (deleted []string, failed []string)
}

// TxRunner executes fn inside one all-or-nothing storage transaction. The
// context passed to fn carries the session; repositories called with it
// participate in the transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ListingCache is a read-through cache for listings by id. Get returns
// (nil, nil) on a miss.
type ListingCache interface {
	Get(ctx context.Context, id string) (*Listing, error)
	Set(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id string) error
}

// EventPublisher emits lifecycle integration events. Publish failures are
// never fatal to the operation that triggered them.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// AuthorizationGate answers whether a user may delete a listing. The lifecycle
// core never inspects permissions itself; it only ever sees the boolean.
type AuthorizationGate interface {
	Check(ctx context.Context, listingID primitive.ObjectID, userID, role string) (bool, error)
}
