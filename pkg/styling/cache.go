package styling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cityatlas/cityatlas/pkg/observability"
)

// descriptorTTL bounds how long a descriptor can live even without an
// invalidation, as a safety net against a missed delete.
const descriptorTTL = time.Hour

// Cache stores rendering descriptors in Redis, keyed per tenant.
// All cache failures degrade to a miss: descriptors regenerate from the
// store and the error is logged, never surfaced.
//
// Cache implements taxonomy.Invalidator so every schema mutation drops
// the tenant's descriptors before any request can observe a stale schema.
type Cache struct {
	client *redis.Client
}

// NewCache creates a descriptor cache on an existing Redis client
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func styleKey(tenantID string) string {
	return fmt.Sprintf("cityatlas:descriptors:style:%s", tenantID)
}

func filtersKey(tenantID string) string {
	return fmt.Sprintf("cityatlas:descriptors:filters:%s", tenantID)
}

// GetStyle retrieves a cached style descriptor; ok is false on miss or
// cache failure
func (c *Cache) GetStyle(ctx context.Context, tenantID string) (*StyleExpression, bool) {
	data, err := c.client.Get(ctx, styleKey(tenantID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logFailure(ctx, tenantID, "get style", err)
		return nil, false
	}

	var style StyleExpression
	if err := json.Unmarshal(data, &style); err != nil {
		c.logFailure(ctx, tenantID, "decode style", err)
		return nil, false
	}
	return &style, true
}

// SetStyle caches a style descriptor
func (c *Cache) SetStyle(ctx context.Context, tenantID string, style *StyleExpression) {
	data, err := json.Marshal(style)
	if err != nil {
		c.logFailure(ctx, tenantID, "encode style", err)
		return
	}
	if err := c.client.Set(ctx, styleKey(tenantID), data, descriptorTTL).Err(); err != nil {
		c.logFailure(ctx, tenantID, "set style", err)
	}
}

// GetFilters retrieves cached filter descriptors; ok is false on miss or
// cache failure
func (c *Cache) GetFilters(ctx context.Context, tenantID string) ([]FilterDescriptor, bool) {
	data, err := c.client.Get(ctx, filtersKey(tenantID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logFailure(ctx, tenantID, "get filters", err)
		return nil, false
	}

	var filters []FilterDescriptor
	if err := json.Unmarshal(data, &filters); err != nil {
		c.logFailure(ctx, tenantID, "decode filters", err)
		return nil, false
	}
	return filters, true
}

// SetFilters caches filter descriptors
func (c *Cache) SetFilters(ctx context.Context, tenantID string, filters []FilterDescriptor) {
	data, err := json.Marshal(filters)
	if err != nil {
		c.logFailure(ctx, tenantID, "encode filters", err)
		return
	}
	if err := c.client.Set(ctx, filtersKey(tenantID), data, descriptorTTL).Err(); err != nil {
		c.logFailure(ctx, tenantID, "set filters", err)
	}
}

// Invalidate drops all cached descriptors for a tenant. Called by the
// taxonomy store after every schema mutation.
func (c *Cache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.client.Del(ctx, styleKey(tenantID), filtersKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate descriptors: %w", err)
	}
	return nil
}

func (c *Cache) logFailure(ctx context.Context, tenantID, operation string, err error) {
	observability.FromContext(ctx).WithError(err).
		WithField("tenant_id", tenantID).
		Warnf("descriptor cache %s failed", operation)
}
