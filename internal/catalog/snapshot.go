package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgredis "github.com/angelmondragon/courtside-storefront/pkg/redis"
)

const snapshotKeyName = "products"

// ErrSnapshotMissing is returned when no shared snapshot exists.
var ErrSnapshotMissing = errors.New("catalog snapshot missing")

// Snapshot is the catalog as last fetched by any process.
type Snapshot struct {
	BuiltAt  time.Time `json:"built_at"`
	Products []Product `json:"products"`
}

// SnapshotCache shares catalog snapshots across API instances.
type SnapshotCache interface {
	Load(ctx context.Context) (Snapshot, error)
	Store(ctx context.Context, snap Snapshot) error
}

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CatalogKey(name string) string
}

// RedisSnapshotCache keeps the snapshot as a JSON document in redis.
type RedisSnapshotCache struct {
	store kvStore
	ttl   time.Duration
}

func NewRedisSnapshotCache(store kvStore, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{store: store, ttl: ttl}
}

func (c *RedisSnapshotCache) Load(ctx context.Context) (Snapshot, error) {
	raw, err := c.store.Get(ctx, c.store.CatalogKey(snapshotKeyName))
	if err != nil {
		if errors.Is(err, pkgredis.ErrNil) {
			return Snapshot{}, ErrSnapshotMissing
		}
		return Snapshot{}, fmt.Errorf("load catalog snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil || snap.BuiltAt.IsZero() {
		return Snapshot{}, ErrSnapshotMissing
	}
	return snap, nil
}

func (c *RedisSnapshotCache) Store(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal catalog snapshot: %w", err)
	}
	return c.store.Set(ctx, c.store.CatalogKey(snapshotKeyName), payload, c.ttl)
}
