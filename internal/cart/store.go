package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/courtside-storefront/internal/catalog"
	"github.com/angelmondragon/courtside-storefront/internal/commerce"
	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
	"github.com/angelmondragon/courtside-storefront/pkg/logger"
	"github.com/angelmondragon/courtside-storefront/pkg/metrics"
	"github.com/angelmondragon/courtside-storefront/pkg/money"
)

const defaultMaxQuantity = 99

// Remote is the storefront cart API the store reconciles against.
type Remote interface {
	CreateSession(ctx context.Context, lines []commerce.LineInput) (*commerce.Session, error)
	AddLines(ctx context.Context, sessionID string, lines []commerce.LineInput) (*commerce.Session, error)
	UpdateLineQuantity(ctx context.Context, sessionID, lineID string, quantity int) (*commerce.Session, error)
	RemoveLine(ctx context.Context, sessionID, lineID string) (*commerce.Session, error)
	RemoveLines(ctx context.Context, sessionID string, lineIDs []string) (*commerce.Session, error)
	FetchSession(ctx context.Context, sessionID string) (*commerce.Session, error)
}

// Resolver maps slugs to variants.
type Resolver interface {
	Resolve(ctx context.Context, slug string) (catalog.ResolvedVariant, error)
	Lookup(variantID string) (catalog.ResolvedVariant, bool)
}

// HandleStore persists one encoded session handle per visitor.
type HandleStore interface {
	Load(ctx context.Context, visitorID string) (string, error)
	Save(ctx context.Context, visitorID, value string) error
	Delete(ctx context.Context, visitorID string) error
}

// Deps wires a Store to its collaborators.
type Deps struct {
	Remote      Remote
	Resolver    Resolver
	Handles     HandleStore
	Logger      *logger.Logger
	Metrics     *metrics.SyncMetrics
	MaxQuantity int
	Now         func() time.Time
}

// Store owns one visitor's cart. Intents update the view immediately and a
// single worker goroutine replays them against the remote cart in order.
type Store struct {
	visitorID   string
	remote      Remote
	resolver    Resolver
	handles     HandleStore
	logg        *logger.Logger
	metrics     *metrics.SyncMetrics
	maxQuantity int
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}

	mu        sync.Mutex
	confirmed []Line
	session   *SessionHandle
	// handleKnown is set once the handle store has been read or superseded.
	handleKnown bool
	// unconfirmed marks a session restored from its handle whose lines the
	// remote has not reported yet.
	unconfirmed bool
	queue     []*op
	status    Status
	lastErr   error
	closed    bool
	subs      map[int]chan Snapshot
	nextSub   int
	lastTouch time.Time
}

// NewStore starts the store's sync worker. Call Close to stop it.
func NewStore(visitorID string, deps Deps) *Store {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	maxQty := deps.MaxQuantity
	if maxQty <= 0 {
		maxQty = defaultMaxQuantity
	}
	ctx, cancel := context.WithCancel(deps.Logger.WithVisitorID(context.Background(), visitorID))
	s := &Store{
		visitorID:   visitorID,
		remote:      deps.Remote,
		resolver:    deps.Resolver,
		handles:     deps.Handles,
		logg:        deps.Logger,
		metrics:     deps.Metrics,
		maxQuantity: maxQty,
		now:         now,
		ctx:         ctx,
		cancel:      cancel,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		status:      StatusIdle,
		subs:        map[int]chan Snapshot{},
		lastTouch:   now(),
	}
	go s.run()
	return s
}

// VisitorID returns the shopper this store belongs to.
func (s *Store) VisitorID() string { return s.visitorID }

// AddItem resolves slug and adds quantity units of its first variant. A slug
// that cannot be resolved fails before any optimistic change.
func (s *Store) AddItem(ctx context.Context, slug string, quantity int) (Snapshot, error) {
	if quantity < 1 {
		return s.Snapshot(), pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	rv, err := s.resolver.Resolve(ctx, slug)
	if err != nil {
		return s.Snapshot(), err
	}
	if !rv.AvailableForSale {
		return s.Snapshot(), pkgerrors.New(pkgerrors.CodeProductUnavailable, "product currently unavailable").
			WithDetails(map[string]any{"slug": rv.Slug})
	}

	line := Line{
		VariantID:    rv.VariantID,
		Slug:         rv.Slug,
		ProductTitle: rv.ProductTitle,
		VariantTitle: rv.VariantTitle,
		ImageURL:     rv.ImageURL,
		UnitPrice:    rv.Price,
	}
	return s.submit(ctx, func(current []Line) (*op, error) {
		existing := 0
		if i := indexOf(current, rv.VariantID); i >= 0 {
			existing = current[i].Quantity
		}
		if existing+quantity > s.maxQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-line limit").
				WithDetails(map[string]any{"max_quantity": s.maxQuantity})
		}
		return &op{kind: opAdd, variantID: rv.VariantID, quantity: quantity, line: line}, nil
	})
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, variantID string, quantity int) (Snapshot, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, variantID)
	}
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return s.Snapshot(), pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if quantity > s.maxQuantity {
		return s.Snapshot(), pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-line limit").
			WithDetails(map[string]any{"max_quantity": s.maxQuantity})
	}
	return s.submit(ctx, func(current []Line) (*op, error) {
		i := indexOf(current, variantID)
		if i < 0 {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrLineNotFound, "cart line not found").
				WithDetails(map[string]any{"variant_id": variantID})
		}
		if current[i].Quantity == quantity {
			return nil, nil
		}
		return &op{kind: opSet, variantID: variantID, quantity: quantity, line: current[i]}, nil
	})
}

// RemoveItem deletes the line for variantID. Removing an absent line succeeds.
func (s *Store) RemoveItem(ctx context.Context, variantID string) (Snapshot, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return s.Snapshot(), pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	return s.submit(ctx, func(current []Line) (*op, error) {
		i := indexOf(current, variantID)
		if i < 0 {
			return nil, nil
		}
		return &op{kind: opSet, variantID: variantID, quantity: 0, line: current[i]}, nil
	})
}

// ClearCart empties the cart. The store settles Idle and empty only when every
// remote line is confirmed removed; otherwise the error is a *ClearError.
func (s *Store) ClearCart(ctx context.Context) (Snapshot, error) {
	return s.submit(ctx, func(current []Line) (*op, error) {
		if len(current) == 0 && len(s.confirmed) == 0 && !s.unconfirmed {
			return nil, nil
		}
		return &op{kind: opClear}, nil
	})
}

// Load revalidates the persisted session against the remote cart. It is
// queued behind pending mutations like any other sync.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	return s.submit(ctx, buildRefresh)
}

func buildRefresh([]Line) (*op, error) {
	return &op{kind: opRefresh}, nil
}

// CheckoutURL returns the last known checkout URL without syncing.
func (s *Store) CheckoutURL() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || s.session.CheckoutURL == "" {
		return "", false
	}
	return s.session.CheckoutURL, true
}

// Snapshot returns the current read model.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe delivers a snapshot after every state change. A slow subscriber
// skips intermediate snapshots but always receives the latest one. The
// returned cancel func stops delivery and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops the worker. Pending intents fail with ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.cancel()
	for _, o := range s.queue {
		o.resolve(ErrStoreClosed)
	}
	s.queue = nil
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
}

// idleSince reports when the store was last used and whether it has work queued.
func (s *Store) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTouch, len(s.queue) == 0
}

// submit builds an op against the current view under the lock, applies it
// optimistically, and waits for its sync. build may return a nil op when
// there is nothing to do.
func (s *Store) submit(ctx context.Context, build func(current []Line) (*op, error)) (Snapshot, error) {
	done, snap, err := s.enqueue(build)
	if done == nil {
		return snap, err
	}
	return s.await(ctx, done)
}

// enqueue queues the op build returns. A nil channel means nothing was queued
// and the snapshot and error are final.
func (s *Store) enqueue(build func(current []Line) (*op, error)) (<-chan error, Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, Snapshot{}, ErrStoreClosed
	}
	s.lastTouch = s.now()
	o, err := build(view(s.confirmed, s.queue))
	if err != nil || o == nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return nil, snap, err
	}

	done := make(chan error, 1)
	o.waiters = append(o.waiters, done)
	if coalesce(s.queue, o) {
		s.metrics.IncCoalesced(o.kind.String())
	} else {
		s.queue = append(s.queue, o)
	}
	s.status = StatusSyncing
	s.notifyLocked()
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return done, Snapshot{}, nil
}

func (s *Store) await(ctx context.Context, done <-chan error) (Snapshot, error) {
	select {
	case err := <-done:
		return s.Snapshot(), err
	case <-ctx.Done():
		return s.Snapshot(), pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(ErrSyncPending, ctx.Err()), "cart sync still pending")
	}
}

func (s *Store) snapshotLocked() Snapshot {
	lines := view(s.confirmed, s.queue)
	snap := Snapshot{
		Lines:     lines,
		ItemCount: itemCount(lines),
		Status:    s.status,
		Syncing:   len(s.queue) > 0,
		Pending:   len(s.queue),
		LastError: failureInfo(s.lastErr),
	}
	if snap.Lines == nil {
		snap.Lines = []Line{}
	}
	if s.session != nil {
		snap.CheckoutURL = s.session.CheckoutURL
	}
	sum, err := total(lines)
	if err != nil {
		if errors.Is(err, money.ErrMixedCurrency) {
			snap.MixedCurrency = true
		}
		s.logg.Error(s.ctx, "cart.total_mixed_currency", err)
		sum = money.Money{}
	}
	snap.Total = sum
	return snap
}

func (s *Store) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
