package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
	"github.com/angelmondragon/courtside-storefront/pkg/logger"
	"github.com/angelmondragon/courtside-storefront/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTTL          = 5 * time.Minute
	defaultFetchTimeout = 30 * time.Second
	refreshKey          = "catalog"
)

var (
	// ErrProductNotFound means the slug has no purchasable variant in the catalog.
	ErrProductNotFound = errors.New("product not found")
	// ErrResolverUnavailable means no mapping could be built from the remote catalog.
	ErrResolverUnavailable = errors.New("resolver unavailable")
)

// Source lists the remote catalog.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// Resolver maps local slugs to remote variant ids and prices.
type Resolver struct {
	source    Source
	snapshots SnapshotCache
	ttl       time.Duration
	now       func() time.Time
	logg      *logger.Logger
	metrics   *metrics.SyncMetrics

	group singleflight.Group
	mu    sync.RWMutex
	index *index
}

type index struct {
	bySlug    map[string]ResolvedVariant
	byVariant map[string]ResolvedVariant
	builtAt   time.Time
}

// ResolverOption configures optional resolver behavior.
type ResolverOption func(*Resolver)

func WithTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithSnapshotCache shares built mappings between processes.
func WithSnapshotCache(cache SnapshotCache) ResolverOption {
	return func(r *Resolver) {
		r.snapshots = cache
	}
}

func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithResolverLogger(logg *logger.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logg = logg
	}
}

func WithResolverMetrics(m *metrics.SyncMetrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func NewResolver(source Source, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source: source,
		ttl:    defaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve returns the first variant of the product whose handle is slug.
// Unknown slugs and an unreachable catalog both come back as PRODUCT_UNAVAILABLE
// so callers can disable add-to-cart rather than fail.
func (r *Resolver) Resolve(ctx context.Context, slug string) (ResolvedVariant, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ResolvedVariant{}, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}

	idx, err := r.current(ctx)
	if err != nil {
		return ResolvedVariant{}, err
	}
	rv, ok := idx.bySlug[slug]
	if !ok {
		return ResolvedVariant{}, pkgerrors.Wrap(pkgerrors.CodeProductUnavailable, ErrProductNotFound, "product unavailable").
			WithDetails(map[string]any{"slug": slug})
	}
	return rv, nil
}

// Lookup finds any known variant by id without triggering a fetch.
func (r *Resolver) Lookup(variantID string) (ResolvedVariant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index == nil {
		return ResolvedVariant{}, false
	}
	rv, ok := r.index.byVariant[variantID]
	return rv, ok
}

// Refresh rebuilds the mapping from the remote catalog regardless of age.
func (r *Resolver) Refresh(ctx context.Context) (int, error) {
	v, err, _ := r.group.Do(refreshKey, func() (any, error) {
		return r.fetchRemote(ctx)
	})
	if err != nil {
		return 0, err
	}
	return len(v.(*index).bySlug), nil
}

// BuiltAt reports when the current mapping was built; zero when none is loaded.
func (r *Resolver) BuiltAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index == nil {
		return time.Time{}
	}
	return r.index.builtAt
}

func (r *Resolver) current(ctx context.Context) (*index, error) {
	r.mu.RLock()
	idx := r.index
	r.mu.RUnlock()
	if idx != nil && r.now().Sub(idx.builtAt) < r.ttl {
		return idx, nil
	}

	v, err, _ := r.group.Do(refreshKey, func() (any, error) {
		return r.rebuild(ctx, idx == nil)
	})
	if err == nil {
		return v.(*index), nil
	}
	if idx != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "catalog.refresh_failed_serving_stale")
		return idx, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeProductUnavailable, errors.Join(ErrResolverUnavailable, err), "product catalog unavailable")
}

// rebuild prefers a fresh shared snapshot when the process has no mapping yet.
func (r *Resolver) rebuild(ctx context.Context, cold bool) (*index, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultFetchTimeout)
	defer cancel()

	if cold && r.snapshots != nil {
		snap, err := r.snapshots.Load(ctx)
		switch {
		case err != nil && !errors.Is(err, ErrSnapshotMissing):
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "catalog.snapshot_load_failed")
		case err == nil && r.now().Sub(snap.BuiltAt) < r.ttl:
			idx := buildIndex(snap.Products, snap.BuiltAt)
			r.install(idx)
			r.metrics.IncCatalogRefresh("snapshot", "ok")
			return idx, nil
		}
	}
	return r.fetchRemote(ctx)
}

func (r *Resolver) fetchRemote(ctx context.Context) (*index, error) {
	if r.source == nil {
		return nil, errors.New("catalog source not configured")
	}
	products, err := r.source.ListProducts(ctx)
	if err != nil {
		r.metrics.IncCatalogRefresh("remote", "error")
		return nil, err
	}
	builtAt := r.now()
	idx := buildIndex(products, builtAt)
	r.install(idx)
	r.metrics.IncCatalogRefresh("remote", "ok")

	if r.snapshots != nil {
		if err := r.snapshots.Store(ctx, Snapshot{BuiltAt: builtAt, Products: products}); err != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "catalog.snapshot_store_failed")
		}
	}
	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"products": len(idx.bySlug),
		"variants": len(idx.byVariant),
	}), "catalog.refreshed")
	return idx, nil
}

func (r *Resolver) install(idx *index) {
	r.mu.Lock()
	r.index = idx
	r.mu.Unlock()
}

func buildIndex(products []Product, builtAt time.Time) *index {
	idx := &index{
		bySlug:    make(map[string]ResolvedVariant, len(products)),
		byVariant: make(map[string]ResolvedVariant, len(products)),
		builtAt:   builtAt,
	}
	for _, p := range products {
		handle := strings.TrimSpace(p.Handle)
		if handle == "" || len(p.Variants) == 0 {
			continue
		}
		for i, v := range p.Variants {
			rv := resolvedFrom(p, v)
			idx.byVariant[v.ID] = rv
			if i == 0 {
				idx.bySlug[handle] = rv
			}
		}
	}
	return idx
}
