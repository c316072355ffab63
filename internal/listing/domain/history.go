package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HistoryRecord is the immutable snapshot written when a listing is removed.
// It is created exactly once per removed listing and never mutated. Image URLs
// are intentionally not archived.
type HistoryRecord struct {
	ID               primitive.ObjectID
	ListingID        string // hex of the removed listing; not a live reference
	SellerID         string
	Title            string
	Make             string
	Model            string
	Price            float64
	FinalStatus      ListingStatus
	FinalSellingDate *time.Time // SoldAt at the moment of removal, if any
	IsAutoDeleted    bool
	DeletedBy        *string // nil means the system sweep
	DeletedAt        time.Time
}

// NewHistoryRecord snapshots a listing at the moment of its removal.
func NewHistoryRecord(l *Listing, deletedBy *string, autoDeleted bool, deletedAt time.Time) *HistoryRecord {
	return &HistoryRecord{
		ID:               primitive.NewObjectID(),
		ListingID:        l.ID.Hex(),
		SellerID:         l.PostedBy,
		Title:            l.Title,
		Make:             l.Make,
		Model:            l.Model,
		Price:            l.Price,
		FinalStatus:      l.Status,
		FinalSellingDate: l.SoldAt,
		IsAutoDeleted:    autoDeleted,
		DeletedBy:        deletedBy,
		DeletedAt:        deletedAt,
	}
}

// HistoryFilter holds parameters for querying the archive.
//
// A date range applies to FinalSellingDate when present and falls back to
// DeletedAt for records that never sold. Search matches title, make and model
// case-insensitively. When both are set they combine as
// (date-range OR group) AND (search OR group).
type HistoryFilter struct {
	Status        string // "" or "all" disables the status filter
	IsAutoDeleted *bool
	DateFrom      *time.Time
	DateTo        *time.Time
	Search        string
	Page          int32
	Limit         int32
}
