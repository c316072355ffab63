package mongodb

import (
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// listingDocument is the MongoDB shape of a live listing. Mapping between
// domain entities and documents is confined to this package.
type listingDocument struct {
	ID              primitive.ObjectID   `bson:"_id"`
	PostedBy        string               `bson:"posted_by"`
	Title           string               `bson:"title"`
	Make            string               `bson:"make"`
	Model           string               `bson:"model"`
	Year            int32                `bson:"year"`
	Price           float64              `bson:"price"`
	Description     string               `bson:"description"`
	Status          domain.ListingStatus `bson:"status"`
	Images          []string             `bson:"images"`
	RejectionReason string               `bson:"rejection_reason,omitempty"`
	ApprovedBy      string               `bson:"approved_by,omitempty"`
	ApprovedAt      *time.Time           `bson:"approved_at,omitempty"`
	SoldAt          *time.Time           `bson:"sold_at,omitempty"`
	AutoDeleteDate  *time.Time           `bson:"auto_delete_date,omitempty"`
	IsAutoDeleted   bool                 `bson:"is_auto_deleted"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
}

func fromDomainListing(l *domain.Listing) *listingDocument {
	if l == nil {
		return nil
	}
	return &listingDocument{
		ID:              l.ID,
		PostedBy:        l.PostedBy,
		Title:           l.Title,
		Make:            l.Make,
		Model:           l.Model,
		Year:            l.Year,
		Price:           l.Price,
		Description:     l.Description,
		Status:          l.Status,
		Images:          l.Images,
		RejectionReason: l.RejectionReason,
		ApprovedBy:      l.ApprovedBy,
		ApprovedAt:      l.ApprovedAt,
		SoldAt:          l.SoldAt,
		AutoDeleteDate:  l.AutoDeleteDate,
		IsAutoDeleted:   l.IsAutoDeleted,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func (d *listingDocument) toDomain() *domain.Listing {
	if d == nil {
		return nil
	}
	return &domain.Listing{
		ID:              d.ID,
		PostedBy:        d.PostedBy,
		Title:           d.Title,
		Make:            d.Make,
		Model:           d.Model,
		Year:            d.Year,
		Price:           d.Price,
		Description:     d.Description,
		Status:          d.Status,
		Images:          d.Images,
		RejectionReason: d.RejectionReason,
		ApprovedBy:      d.ApprovedBy,
		ApprovedAt:      d.ApprovedAt,
		SoldAt:          d.SoldAt,
		AutoDeleteDate:  d.AutoDeleteDate,
		IsAutoDeleted:   d.IsAutoDeleted,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// historyDocument is the MongoDB shape of an archive snapshot. No image URLs
// are persisted here.
type historyDocument struct {
	ID               primitive.ObjectID   `bson:"_id"`
	ListingID        string               `bson:"listing_id"`
	SellerID         string               `bson:"seller_id"`
	Title            string               `bson:"title"`
	Make             string               `bson:"make"`
	Model            string               `bson:"model"`
	Price            float64              `bson:"price"`
	FinalStatus      domain.ListingStatus `bson:"final_status"`
	FinalSellingDate *time.Time           `bson:"final_selling_date"` // kept explicit (null) for the date-range fallback query
	IsAutoDeleted    bool                 `bson:"is_auto_deleted"`
	DeletedBy        *string              `bson:"deleted_by,omitempty"`
	DeletedAt        time.Time            `bson:"deleted_at"`
}

func fromDomainHistory(r *domain.HistoryRecord) *historyDocument {
	if r == nil {
		return nil
	}
	return &historyDocument{
		ID:               r.ID,
		ListingID:        r.ListingID,
		SellerID:         r.SellerID,
		Title:            r.Title,
		Make:             r.Make,
		Model:            r.Model,
		Price:            r.Price,
		FinalStatus:      r.FinalStatus,
		FinalSellingDate: r.FinalSellingDate,
		IsAutoDeleted:    r.IsAutoDeleted,
		DeletedBy:        r.DeletedBy,
		DeletedAt:        r.DeletedAt,
	}
}

func (d *historyDocument) toDomain() *domain.HistoryRecord {
	if d == nil {
		return nil
	}
	return &domain.HistoryRecord{
		ID:               d.ID,
		ListingID:        d.ListingID,
		SellerID:         d.SellerID,
		Title:            d.Title,
		Make:             d.Make,
		Model:            d.Model,
		Price:            d.Price,
		FinalStatus:      d.FinalStatus,
		FinalSellingDate: d.FinalSellingDate,
		IsAutoDeleted:    d.IsAutoDeleted,
		DeletedBy:        d.DeletedBy,
		DeletedAt:        d.DeletedAt,
	}
}
