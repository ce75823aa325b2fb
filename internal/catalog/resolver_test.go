package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
	"github.com/angelmondragon/courtside-storefront/pkg/money"
	pkgredis "github.com/angelmondragon/courtside-storefront/pkg/redis"
)

type stubSource struct {
	mu       sync.Mutex
	products []Product
	err      error
	calls    int32
	gate     chan struct{}
}

func (s *stubSource) ListProducts(ctx context.Context) ([]Product, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.products, nil
}

func (s *stubSource) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func mustMoney(t *testing.T, amount string) money.Money {
	t.Helper()
	m, err := money.New(amount, "EUR")
	if err != nil {
		t.Fatalf("money: %v", err)
	}
	return m
}

func racketCatalog(t *testing.T) []Product {
	return []Product{
		{
			ID:     "gid://shopify/Product/1",
			Handle: "pr8100-red-black",
			Title:  "PR 8100",
			Images: []Image{{URL: "https://cdn.example/pr8100.png"}},
			Variants: []Variant{
				{ID: "gid://shopify/ProductVariant/11", Title: "Red / Black", Price: mustMoney(t, "189.95"), AvailableForSale: true},
				{ID: "gid://shopify/ProductVariant/12", Title: "Blue / Black", Price: mustMoney(t, "179.95"), AvailableForSale: true},
			},
		},
		{ID: "gid://shopify/Product/2", Handle: "gift-card"},
	}
}

func TestResolveReturnsFirstVariant(t *testing.T) {
	source := &stubSource{products: racketCatalog(t)}
	r := NewResolver(source)

	rv, err := r.Resolve(context.Background(), "pr8100-red-black")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rv.VariantID != "gid://shopify/ProductVariant/11" || rv.Price.String() != "189.95 EUR" {
		t.Fatalf("unexpected resolution %+v", rv)
	}
	if rv.ImageURL != "https://cdn.example/pr8100.png" {
		t.Fatalf("expected product image, got %q", rv.ImageURL)
	}

	if got, ok := r.Lookup("gid://shopify/ProductVariant/12"); !ok || got.VariantTitle != "Blue / Black" {
		t.Fatalf("reverse lookup failed: %+v %v", got, ok)
	}
}

func TestResolveUnknownSlugIsProductUnavailable(t *testing.T) {
	r := NewResolver(&stubSource{products: racketCatalog(t)})

	for _, slug := range []string{"missing", "gift-card"} {
		_, err := r.Resolve(context.Background(), slug)
		if !errors.Is(err, ErrProductNotFound) {
			t.Fatalf("%s: expected ErrProductNotFound, got %v", slug, err)
		}
		if pkgerrors.CodeOf(err) != pkgerrors.CodeProductUnavailable {
			t.Fatalf("%s: expected PRODUCT_UNAVAILABLE, got %s", slug, pkgerrors.CodeOf(err))
		}
	}
}

func TestResolveEmptySlugIsValidation(t *testing.T) {
	r := NewResolver(&stubSource{})
	if _, err := r.Resolve(context.Background(), "  "); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestResolveCachesUntilTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	source := &stubSource{products: racketCatalog(t)}
	r := NewResolver(source, WithTTL(5*time.Minute), WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(ctx, "pr8100-red-black"); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if got := atomic.LoadInt32(&source.calls); got != 1 {
		t.Fatalf("expected a single catalog fetch, got %d", got)
	}

	clock.Advance(5 * time.Minute)
	if _, err := r.Resolve(ctx, "pr8100-red-black"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := atomic.LoadInt32(&source.calls); got != 2 {
		t.Fatalf("expected refresh after ttl, got %d fetches", got)
	}
}

func TestResolveServesStaleMappingWhenRefreshFails(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	source := &stubSource{products: racketCatalog(t)}
	r := NewResolver(source, WithClock(clock.Now))
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "pr8100-red-black"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	source.fail(errors.New("network down"))
	clock.Advance(10 * time.Minute)

	rv, err := r.Resolve(ctx, "pr8100-red-black")
	if err != nil {
		t.Fatalf("expected stale mapping, got %v", err)
	}
	if rv.VariantID != "gid://shopify/ProductVariant/11" {
		t.Fatalf("unexpected stale resolution %+v", rv)
	}
}

func TestResolveColdFailureIsResolverUnavailable(t *testing.T) {
	r := NewResolver(&stubSource{err: errors.New("network down")})

	_, err := r.Resolve(context.Background(), "pr8100-red-black")
	if !errors.Is(err, ErrResolverUnavailable) {
		t.Fatalf("expected ErrResolverUnavailable, got %v", err)
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeProductUnavailable {
		t.Fatalf("expected PRODUCT_UNAVAILABLE, got %s", pkgerrors.CodeOf(err))
	}
}

func TestConcurrentResolvesShareOneFetch(t *testing.T) {
	source := &stubSource{products: racketCatalog(t), gate: make(chan struct{})}
	r := NewResolver(source)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), "pr8100-red-black")
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(source.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if got := atomic.LoadInt32(&source.calls); got != 1 {
		t.Fatalf("expected one shared fetch, got %d", got)
	}
}

func TestRefreshForcesFetch(t *testing.T) {
	source := &stubSource{products: racketCatalog(t)}
	r := NewResolver(source)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "pr8100-red-black"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	n, err := r.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 resolvable product, got %d", n)
	}
	if got := atomic.LoadInt32(&source.calls); got != 2 {
		t.Fatalf("expected 2 fetches, got %d", got)
	}
}

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.ErrNil
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memoryKV) CatalogKey(name string) string { return "cs:catalog:" + name }

func TestSnapshotCacheWarmsColdResolver(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	kv := &memoryKV{data: map[string]string{}}
	cache := NewRedisSnapshotCache(kv, 15*time.Minute)
	ctx := context.Background()

	warm := NewResolver(&stubSource{products: racketCatalog(t)}, WithSnapshotCache(cache), WithClock(clock.Now))
	if _, err := warm.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, ok := kv.data["cs:catalog:products"]; !ok {
		t.Fatalf("expected snapshot to be written through")
	}

	coldSource := &stubSource{err: errors.New("should not be called")}
	cold := NewResolver(coldSource, WithSnapshotCache(cache), WithClock(clock.Now))
	rv, err := cold.Resolve(ctx, "pr8100-red-black")
	if err != nil {
		t.Fatalf("resolve from snapshot: %v", err)
	}
	if rv.Price.String() != "189.95 EUR" {
		t.Fatalf("snapshot lost price precision: %s", rv.Price)
	}
	if got := atomic.LoadInt32(&coldSource.calls); got != 0 {
		t.Fatalf("expected no remote fetch, got %d", got)
	}
}

func TestSnapshotCacheTreatsCorruptValueAsMissing(t *testing.T) {
	kv := &memoryKV{data: map[string]string{"cs:catalog:products": "{not json"}}
	if _, err := NewRedisSnapshotCache(kv, time.Minute).Load(context.Background()); !errors.Is(err, ErrSnapshotMissing) {
		t.Fatalf("expected ErrSnapshotMissing, got %v", err)
	}

	raw, _ := json.Marshal(Snapshot{})
	kv.data["cs:catalog:products"] = string(raw)
	if _, err := NewRedisSnapshotCache(kv, time.Minute).Load(context.Background()); !errors.Is(err, ErrSnapshotMissing) {
		t.Fatalf("expected zero snapshot to be missing, got %v", err)
	}
}
