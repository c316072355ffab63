package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	listingKeyPrefix  = "listing:"
	defaultListingTTL = 5 * time.Minute
)

// ListingCache is a Redis read-through cache for single listings. A cache
// failure is never fatal: callers fall back to the repository.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewListingCache creates the cache with the default TTL.
func NewListingCache(client *redis.Client, log *logger.Logger) *ListingCache {
	return &ListingCache{
		client: client,
		ttl:    defaultListingTTL,
		logger: log.Named("ListingCache"),
	}
}

// Get returns the cached listing, or (nil, nil) on a miss.
func (c *ListingCache) Get(ctx context.Context, id string) (*domain.Listing, error) {
	data, err := c.client.Get(ctx, listingKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		c.logger.Warn("Cache get failed", zap.String("listing_id", id), zap.Error(err))
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var listing domain.Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		c.logger.Warn("Corrupt cache entry, dropping", zap.String("listing_id", id), zap.Error(err))
		c.client.Del(ctx, listingKeyPrefix+id)
		return nil, nil
	}
	return &listing, nil
}

// Set stores the listing under its id.
func (c *ListingCache) Set(ctx context.Context, listing *domain.Listing) error {
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	if err := c.client.Set(ctx, listingKeyPrefix+listing.ID.Hex(), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache set failed", zap.String("listing_id", listing.ID.Hex()), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Delete removes the cached copy of a listing.
func (c *ListingCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, listingKeyPrefix+id).Err(); err != nil {
		c.logger.Warn("Cache delete failed", zap.String("listing_id", id), zap.Error(err))
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}
