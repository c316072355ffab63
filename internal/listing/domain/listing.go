package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingStatus represents the lifecycle state of a listing.
type ListingStatus string

const (
	StatusPending  ListingStatus = "pending"
	StatusApproved ListingStatus = "approved"
	StatusRejected ListingStatus = "rejected"
	StatusSold     ListingStatus = "sold"
	StatusDeleted  ListingStatus = "deleted"
)

// IsValid checks if the ListingStatus is one of the defined constants.
func (s ListingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSold, StatusDeleted:
		return true
	}
	return false
}

// Listing represents a car offered for sale.
//
// StatusDeleted never appears on a stored listing: removal goes through the
// lifecycle engine, which archives the snapshot and deletes the row in one
// transaction. The status only exists as the conceptual terminal state.
type Listing struct {
	ID              primitive.ObjectID
	PostedBy        string // ID of the seller
	Title           string
	Make            string
	Model           string
	Year            int32
	Price           float64
	Description     string
	Status          ListingStatus
	Images          []string // URLs of objects held in external storage
	RejectionReason string
	ApprovedBy      string
	ApprovedAt      *time.Time
	SoldAt          *time.Time
	AutoDeleteDate  *time.Time // SoldAt + retention window; sweep eligibility marker
	IsAutoDeleted   bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewListing creates a listing in the pending state.
func NewListing(postedBy, title, carMake, model string, year int32, price float64, description string) (*Listing, error) {
	if postedBy == "" {
		return nil, errors.New("postedBy cannot be empty")
	}
	if title == "" {
		return nil, errors.New("title cannot be empty")
	}
	if price < 0 {
		return nil, errors.New("price cannot be negative")
	}

	now := time.Now().UTC()
	return &Listing{
		ID:          primitive.NewObjectID(),
		PostedBy:    postedBy,
		Title:       title,
		Make:        carMake,
		Model:       model,
		Year:        year,
		Price:       price,
		Description: description,
		Status:      StatusPending,
		Images:      []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Approve moves a pending or previously rejected listing to approved.
// A rejection is not a dead end; moderators may re-approve later.
func (l *Listing) Approve(adminID string, now time.Time) error {
	switch l.Status {
	case StatusPending, StatusRejected:
	default:
		return fmt.Errorf("%w: cannot approve a listing in status %q", ErrInvalidTransition, l.Status)
	}
	approvedAt := now
	l.Status = StatusApproved
	l.ApprovedBy = adminID
	l.ApprovedAt = &approvedAt
	l.RejectionReason = ""
	l.UpdatedAt = now
	return nil
}

// Reject moves a pending listing to rejected with a moderator reason.
func (l *Listing) Reject(reason string, now time.Time) error {
	if l.Status != StatusPending {
		return fmt.Errorf("%w: cannot reject a listing in status %q", ErrInvalidTransition, l.Status)
	}
	if reason == "" {
		return fmt.Errorf("%w: rejection reason cannot be empty", ErrInvalidInput)
	}
	l.Status = StatusRejected
	l.RejectionReason = reason
	l.UpdatedAt = now
	return nil
}

// MarkSold moves an approved listing to sold and stamps the auto-delete date
// that makes it sweep-eligible once the retention window elapses.
func (l *Listing) MarkSold(now time.Time, retention time.Duration) error {
	if l.Status != StatusApproved {
		return fmt.Errorf("%w: cannot mark a listing in status %q as sold", ErrInvalidTransition, l.Status)
	}
	soldAt := now
	autoDelete := now.Add(retention)
	l.Status = StatusSold
	l.SoldAt = &soldAt
	l.AutoDeleteDate = &autoDelete
	l.UpdatedAt = now
	return nil
}

// SweepEligible reports whether the scheduled sweep may archive this listing.
func (l *Listing) SweepEligible(now time.Time) bool {
	return l.Status == StatusSold &&
		!l.IsAutoDeleted &&
		l.AutoDeleteDate != nil &&
		l.AutoDeleteDate.Before(now)
}

// Editable reports whether non-status fields may still be changed.
func (l *Listing) Editable() bool {
	return l.Status != StatusDeleted
}
