package cart

import (
	"context"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
)

const defaultIdleTTL = 30 * time.Minute

// Manager owns one Store per visitor. Stores are created and loaded on first
// use and closed after sitting idle for IdleTTL; a later visit reloads the
// cart from the remote session.
type Manager struct {
	deps    Deps
	idleTTL time.Duration
	now     func() time.Time

	mu     sync.Mutex
	stores map[string]*Store
	closed bool
}

func NewManager(deps Deps, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		deps:    deps,
		idleTTL: idleTTL,
		now:     now,
		stores:  map[string]*Store{},
	}
}

// Get returns the visitor's store, creating and loading it when absent. A
// failed load is logged and the store is still returned.
func (m *Manager) Get(ctx context.Context, visitorID string) (*Store, error) {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "visitor id is required")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrStoreClosed
	}
	if store, ok := m.stores[visitorID]; ok {
		m.mu.Unlock()
		return store, nil
	}
	store := NewStore(visitorID, m.deps)
	m.stores[visitorID] = store
	// The load is queued before any other caller can see the store so it
	// runs ahead of every intent.
	done, _, err := store.enqueue(buildRefresh)
	m.mu.Unlock()

	if done != nil {
		_, err = store.await(ctx, done)
	}
	if err != nil {
		m.deps.Logger.Warn(m.deps.Logger.WithField(ctx, "error", err.Error()), "cart.load_failed")
	}
	return store, nil
}

// Sweep closes stores idle for longer than IdleTTL and returns how many.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)
	m.mu.Lock()
	var evicted []*Store
	for id, store := range m.stores {
		last, idle := store.idleSince()
		if idle && last.Before(cutoff) {
			evicted = append(evicted, store)
			delete(m.stores, id)
		}
	}
	m.mu.Unlock()

	for _, store := range evicted {
		store.Close()
	}
	return len(evicted)
}

// Run sweeps on an interval until ctx ends, then closes every store.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.deps.Logger.Debug(m.deps.Logger.WithField(ctx, "evicted", n), "cart.stores_evicted")
			}
		}
	}
}

// Len reports how many stores are resident.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

func (m *Manager) Close() {
	m.mu.Lock()
	stores := m.stores
	m.stores = map[string]*Store{}
	m.closed = true
	m.mu.Unlock()
	for _, store := range stores {
		store.Close()
	}
}
