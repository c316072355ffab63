package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewListing(t *testing.T) {
	t.Run("creates pending listing", func(t *testing.T) {
		l, err := NewListing("seller-1", "2019 Toyota Camry", "Toyota", "Camry", 2019, 15500, "clean title")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, l.Status)
		assert.False(t, l.ID.IsZero())
		assert.Empty(t, l.Images)
		assert.False(t, l.IsAutoDeleted)
		assert.Nil(t, l.AutoDeleteDate)
	})

	t.Run("requires seller", func(t *testing.T) {
		_, err := NewListing("", "title", "", "", 0, 100, "")
		assert.Error(t, err)
	})

	t.Run("requires title", func(t *testing.T) {
		_, err := NewListing("seller-1", "", "", "", 0, 100, "")
		assert.Error(t, err)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		_, err := NewListing("seller-1", "title", "", "", 0, -1, "")
		assert.Error(t, err)
	})
}

func TestListingTransitions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newListing := func(status ListingStatus) *Listing {
		l, err := NewListing("seller-1", "2019 Toyota Camry", "Toyota", "Camry", 2019, 15500, "")
		require.NoError(t, err)
		l.Status = status
		return l
	}

	t.Run("approve from pending", func(t *testing.T) {
		l := newListing(StatusPending)
		require.NoError(t, l.Approve("admin-1", now))
		assert.Equal(t, StatusApproved, l.Status)
		assert.Equal(t, "admin-1", l.ApprovedBy)
		require.NotNil(t, l.ApprovedAt)
		assert.Equal(t, now, *l.ApprovedAt)
	})

	t.Run("approve after rejection clears the reason", func(t *testing.T) {
		l := newListing(StatusPending)
		require.NoError(t, l.Reject("blurry photos", now))
		require.NoError(t, l.Approve("admin-2", now.Add(time.Hour)))
		assert.Equal(t, StatusApproved, l.Status)
		assert.Empty(t, l.RejectionReason)
	})

	t.Run("approve from sold fails", func(t *testing.T) {
		l := newListing(StatusSold)
		err := l.Approve("admin-1", now)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	})

	t.Run("reject requires pending", func(t *testing.T) {
		for _, status := range []ListingStatus{StatusApproved, StatusRejected, StatusSold} {
			l := newListing(status)
			err := l.Reject("reason", now)
			assert.True(t, errors.Is(err, ErrInvalidTransition), "status %s", status)
		}
	})

	t.Run("reject requires reason", func(t *testing.T) {
		l := newListing(StatusPending)
		err := l.Reject("", now)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("mark sold stamps auto-delete date", func(t *testing.T) {
		l := newListing(StatusApproved)
		retention := 7 * 24 * time.Hour
		require.NoError(t, l.MarkSold(now, retention))
		assert.Equal(t, StatusSold, l.Status)
		require.NotNil(t, l.SoldAt)
		require.NotNil(t, l.AutoDeleteDate)
		assert.Equal(t, now, *l.SoldAt)
		assert.Equal(t, now.Add(retention), *l.AutoDeleteDate)
	})

	t.Run("mark sold requires approved", func(t *testing.T) {
		for _, status := range []ListingStatus{StatusPending, StatusRejected, StatusSold} {
			l := newListing(status)
			err := l.MarkSold(now, time.Hour)
			assert.True(t, errors.Is(err, ErrInvalidTransition), "status %s", status)
		}
	})
}

func TestSweepEligible(t *testing.T) {
	now := time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name     string
		status   ListingStatus
		autoDel  *time.Time
		flagged  bool
		eligible bool
	}{
		{"sold past window", StatusSold, &past, false, true},
		{"sold inside window", StatusSold, &future, false, false},
		{"sold without date", StatusSold, nil, false, false},
		{"approved past window", StatusApproved, &past, false, false},
		{"already flagged", StatusSold, &past, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &Listing{Status: tc.status, AutoDeleteDate: tc.autoDel, IsAutoDeleted: tc.flagged}
			assert.Equal(t, tc.eligible, l.SweepEligible(now))
		})
	}
}

func TestNewHistoryRecord(t *testing.T) {
	now := time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)
	soldAt := now.Add(-8 * 24 * time.Hour)

	l, err := NewListing("seller-1", "2019 Toyota Camry", "Toyota", "Camry", 2019, 15500, "")
	require.NoError(t, err)
	l.Status = StatusSold
	l.SoldAt = &soldAt
	l.Images = []string{"http://s3/listing-images/a.jpg"}

	t.Run("sweep removal", func(t *testing.T) {
		rec := NewHistoryRecord(l, nil, true, now)
		assert.Equal(t, l.ID.Hex(), rec.ListingID)
		assert.Equal(t, "seller-1", rec.SellerID)
		assert.Equal(t, StatusSold, rec.FinalStatus)
		require.NotNil(t, rec.FinalSellingDate)
		assert.Equal(t, soldAt, *rec.FinalSellingDate)
		assert.True(t, rec.IsAutoDeleted)
		assert.Nil(t, rec.DeletedBy)
		assert.Equal(t, now, rec.DeletedAt)
	})

	t.Run("manual removal records the actor", func(t *testing.T) {
		actor := "seller-1"
		rec := NewHistoryRecord(l, &actor, false, now)
		assert.False(t, rec.IsAutoDeleted)
		require.NotNil(t, rec.DeletedBy)
		assert.Equal(t, "seller-1", *rec.DeletedBy)
	})
}
