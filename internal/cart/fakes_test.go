package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/courtside-storefront/internal/catalog"
	"github.com/angelmondragon/courtside-storefront/internal/commerce"
	"github.com/angelmondragon/courtside-storefront/internal/sessions"
	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
	"github.com/angelmondragon/courtside-storefront/pkg/money"
)

const (
	racketSlug    = "pr8100-red-black"
	racketVariant = "gid://shopify/ProductVariant/11"
	paddleSlug    = "pickle-paddle"
	paddleVariant = "gid://shopify/ProductVariant/21"
)

type remoteCall struct {
	op        string
	variantID string
	quantity  int
	lineIDs   []string
}

// fakeRemote is an in-memory storefront. Calls can be blocked and failed.
type fakeRemote struct {
	mu       sync.Mutex
	carts    map[string][]commerce.RemoteLine
	prices   map[string]money.Money
	nextID   int
	calls    []remoteCall
	failures map[string][]error
	block    chan struct{}
	entered  chan string
}

func newFakeRemote(t *testing.T) *fakeRemote {
	return &fakeRemote{
		carts: map[string][]commerce.RemoteLine{},
		prices: map[string]money.Money{
			racketVariant: mustMoney(t, "189.95", "EUR"),
			paddleVariant: mustMoney(t, "89.00", "EUR"),
		},
		failures: map[string][]error{},
		entered:  make(chan string, 256),
	}
}

func mustMoney(t *testing.T, amount, currency string) money.Money {
	t.Helper()
	m, err := money.New(amount, currency)
	if err != nil {
		t.Fatalf("money: %v", err)
	}
	return m
}

func (r *fakeRemote) failNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = append(r.failures[op], err)
}

func (r *fakeRemote) hold() {
	r.mu.Lock()
	r.block = make(chan struct{})
	r.mu.Unlock()
}

func (r *fakeRemote) release() {
	r.mu.Lock()
	block := r.block
	r.block = nil
	r.mu.Unlock()
	if block != nil {
		close(block)
	}
}

func (r *fakeRemote) expire(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, id)
}

// seed installs a remote cart directly, bypassing line merging.
func (r *fakeRemote) seed(id string, lines []commerce.RemoteLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[id] = lines
}

func (r *fakeRemote) cartLines(id string) []commerce.RemoteLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]commerce.RemoteLine(nil), r.carts[id]...)
}

func (r *fakeRemote) callsFor(op string) []remoteCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []remoteCall
	for _, c := range r.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *fakeRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRemote) begin(c remoteCall) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	block := r.block
	r.mu.Unlock()

	r.entered <- c.op
	if block != nil {
		<-block
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if errs := r.failures[c.op]; len(errs) > 0 {
		r.failures[c.op] = errs[1:]
		return errs[0]
	}
	return nil
}

func (r *fakeRemote) sessionLocked(id string) *commerce.Session {
	lines := append([]commerce.RemoteLine(nil), r.carts[id]...)
	qty := 0
	for _, l := range lines {
		qty += l.Quantity
	}
	return &commerce.Session{ID: id, CheckoutURL: "https://shop.example/checkouts/" + id, Lines: lines, TotalQuantity: qty}
}

func (r *fakeRemote) mergeLocked(id string, inputs []commerce.LineInput) {
	lines := r.carts[id]
	for _, in := range inputs {
		merged := false
		for i := range lines {
			if lines[i].VariantID == in.VariantID {
				lines[i].Quantity += in.Quantity
				merged = true
			}
		}
		if !merged {
			r.nextID++
			lines = append(lines, commerce.RemoteLine{
				ID:        fmt.Sprintf("gid://shopify/CartLine/%d", r.nextID),
				VariantID: in.VariantID,
				Quantity:  in.Quantity,
				UnitPrice: r.prices[in.VariantID],
			})
		}
	}
	r.carts[id] = lines
}

func staleErr() error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, commerce.ErrSessionNotFound, "cart session not found")
}

func rejectedErr(msg string) error {
	return pkgerrors.Wrap(pkgerrors.CodeCartRejected, &commerce.UserError{Operation: "test", Errors: []commerce.UserErrorDetail{{Message: msg}}}, msg)
}

func transportErr() error {
	return pkgerrors.New(pkgerrors.CodeDependency, "storefront unavailable")
}

func (r *fakeRemote) CreateSession(_ context.Context, lines []commerce.LineInput) (*commerce.Session, error) {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	if err := r.begin(remoteCall{op: "create", quantity: total}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := fmt.Sprintf("gid://shopify/Cart/%d", r.nextID)
	r.carts[id] = nil
	r.mergeLocked(id, lines)
	return r.sessionLocked(id), nil
}

func (r *fakeRemote) AddLines(_ context.Context, sessionID string, lines []commerce.LineInput) (*commerce.Session, error) {
	c := remoteCall{op: "add"}
	if len(lines) == 1 {
		c.variantID, c.quantity = lines[0].VariantID, lines[0].Quantity
	}
	if err := r.begin(c); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.carts[sessionID]; !ok {
		return nil, staleErr()
	}
	r.mergeLocked(sessionID, lines)
	return r.sessionLocked(sessionID), nil
}

func (r *fakeRemote) UpdateLineQuantity(_ context.Context, sessionID, lineID string, quantity int) (*commerce.Session, error) {
	if err := r.begin(remoteCall{op: "update", quantity: quantity, lineIDs: []string{lineID}}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	lines, ok := r.carts[sessionID]
	if !ok {
		return nil, staleErr()
	}
	for i := range lines {
		if lines[i].ID == lineID {
			lines[i].Quantity = quantity
			return r.sessionLocked(sessionID), nil
		}
	}
	return nil, rejectedErr("line does not exist")
}

func (r *fakeRemote) RemoveLine(ctx context.Context, sessionID, lineID string) (*commerce.Session, error) {
	if err := r.begin(remoteCall{op: "remove", lineIDs: []string{lineID}}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(sessionID, []string{lineID})
}

func (r *fakeRemote) RemoveLines(_ context.Context, sessionID string, lineIDs []string) (*commerce.Session, error) {
	if err := r.begin(remoteCall{op: "remove_bulk", lineIDs: lineIDs}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(sessionID, lineIDs)
}

func (r *fakeRemote) removeLocked(sessionID string, lineIDs []string) (*commerce.Session, error) {
	lines, ok := r.carts[sessionID]
	if !ok {
		return nil, staleErr()
	}
	drop := map[string]bool{}
	for _, id := range lineIDs {
		drop[id] = true
	}
	kept := lines[:0:0]
	for _, l := range lines {
		if !drop[l.ID] {
			kept = append(kept, l)
		}
	}
	r.carts[sessionID] = kept
	return r.sessionLocked(sessionID), nil
}

func (r *fakeRemote) FetchSession(_ context.Context, sessionID string) (*commerce.Session, error) {
	if err := r.begin(remoteCall{op: "fetch"}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.carts[sessionID]; !ok {
		return nil, staleErr()
	}
	return r.sessionLocked(sessionID), nil
}

type stubResolver struct {
	variants map[string]catalog.ResolvedVariant
}

func newStubResolver(t *testing.T) *stubResolver {
	return &stubResolver{variants: map[string]catalog.ResolvedVariant{
		racketSlug: {Slug: racketSlug, ProductTitle: "PR 8100", VariantID: racketVariant, VariantTitle: "Red / Black", Price: mustMoney(t, "189.95", "EUR"), AvailableForSale: true},
		paddleSlug: {Slug: paddleSlug, ProductTitle: "Pickle Paddle", VariantID: paddleVariant, VariantTitle: "Default", Price: mustMoney(t, "89.00", "EUR"), AvailableForSale: true},
	}}
}

func (r *stubResolver) Resolve(_ context.Context, slug string) (catalog.ResolvedVariant, error) {
	rv, ok := r.variants[slug]
	if !ok {
		return catalog.ResolvedVariant{}, pkgerrors.Wrap(pkgerrors.CodeProductUnavailable, catalog.ErrProductNotFound, "product unavailable")
	}
	return rv, nil
}

func (r *stubResolver) Lookup(variantID string) (catalog.ResolvedVariant, bool) {
	for _, rv := range r.variants {
		if rv.VariantID == variantID {
			return rv, true
		}
	}
	return catalog.ResolvedVariant{}, false
}

type memoryHandles struct {
	mu       sync.Mutex
	values   map[string]string
	saves    int
	loadErrs []error
}

func newMemoryHandles() *memoryHandles {
	return &memoryHandles{values: map[string]string{}}
}

func (h *memoryHandles) failNextLoad(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadErrs = append(h.loadErrs, err)
}

func (h *memoryHandles) Load(_ context.Context, visitorID string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.loadErrs) > 0 {
		err := h.loadErrs[0]
		h.loadErrs = h.loadErrs[1:]
		return "", err
	}
	v, ok := h.values[visitorID]
	if !ok {
		return "", sessions.ErrNotFound
	}
	return v, nil
}

func (h *memoryHandles) Save(_ context.Context, visitorID, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values[visitorID] = value
	h.saves++
	return nil
}

func (h *memoryHandles) Delete(_ context.Context, visitorID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.values, visitorID)
	return nil
}

func (h *memoryHandles) handle(visitorID string) (SessionHandle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return DecodeHandle(h.values[visitorID])
}

type testEnv struct {
	remote   *fakeRemote
	resolver *stubResolver
	handles  *memoryHandles
	store    *Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		remote:   newFakeRemote(t),
		resolver: newStubResolver(t),
		handles:  newMemoryHandles(),
	}
	env.store = NewStore("visitor-1", env.deps())
	t.Cleanup(env.store.Close)
	return env
}

func (e *testEnv) deps() Deps {
	return Deps{Remote: e.remote, Resolver: e.resolver, Handles: e.handles, MaxQuantity: 10}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type result struct {
	snap Snapshot
	err  error
}

func async(fn func() (Snapshot, error)) <-chan result {
	ch := make(chan result, 1)
	go func() {
		snap, err := fn()
		ch <- result{snap: snap, err: err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("intent did not complete")
	}
	return result{}
}
