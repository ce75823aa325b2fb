package cart

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/courtside-storefront/api/controllers/cart/dto"
	"github.com/angelmondragon/courtside-storefront/api/middleware"
	"github.com/angelmondragon/courtside-storefront/api/responses"
	"github.com/angelmondragon/courtside-storefront/api/validators"
	cartsvc "github.com/angelmondragon/courtside-storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
	"github.com/angelmondragon/courtside-storefront/pkg/logger"
)

// Cart is the per-visitor store surface the handlers drive.
type Cart interface {
	AddItem(ctx context.Context, slug string, quantity int) (cartsvc.Snapshot, error)
	UpdateQuantity(ctx context.Context, variantID string, quantity int) (cartsvc.Snapshot, error)
	RemoveItem(ctx context.Context, variantID string) (cartsvc.Snapshot, error)
	ClearCart(ctx context.Context) (cartsvc.Snapshot, error)
	Load(ctx context.Context) (cartsvc.Snapshot, error)
	Snapshot() cartsvc.Snapshot
	CheckoutURL() (string, bool)
}

// Carts hands out the visitor's cart.
type Carts interface {
	Get(ctx context.Context, visitorID string) (Cart, error)
}

type managerCarts struct {
	m *cartsvc.Manager
}

// FromManager adapts a cart.Manager to Carts.
func FromManager(m *cartsvc.Manager) Carts {
	return managerCarts{m: m}
}

func (c managerCarts) Get(ctx context.Context, visitorID string) (Cart, error) {
	store, err := c.m.Get(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Handlers serves the cart intent API. WaitTimeout bounds how long a request
// waits for its own sync before answering with the optimistic snapshot.
type Handlers struct {
	Carts       Carts
	Logger      *logger.Logger
	WaitTimeout time.Duration
}

// Fetch returns the snapshot. With refresh=true it revalidates the remote
// session first.
func (h Handlers) Fetch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := h.cart(w, r)
		if !ok {
			return
		}
		refresh, err := validators.ParseQueryBool(r, "refresh", false)
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		if !refresh {
			responses.WriteSuccess(w, c.Snapshot())
			return
		}
		h.run(w, r, c.Load)
	}
}

func (h Handlers) AddLine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload dto.AddLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		c, ok := h.cart(w, r)
		if !ok {
			return
		}
		h.run(w, r, func(ctx context.Context) (cartsvc.Snapshot, error) {
			return c.AddItem(ctx, payload.Slug, payload.Quantity)
		})
	}
}

func (h Handlers) UpdateLine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload dto.UpdateLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		c, ok := h.cart(w, r)
		if !ok {
			return
		}
		h.run(w, r, func(ctx context.Context) (cartsvc.Snapshot, error) {
			return c.UpdateQuantity(ctx, payload.VariantID, payload.Quantity)
		})
	}
}

func (h Handlers) RemoveLine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.RequireQuery(r, "variant_id")
		if err != nil {
			responses.WriteError(r.Context(), h.Logger, w, err)
			return
		}
		c, ok := h.cart(w, r)
		if !ok {
			return
		}
		h.run(w, r, func(ctx context.Context) (cartsvc.Snapshot, error) {
			return c.RemoveItem(ctx, variantID)
		})
	}
}

func (h Handlers) Clear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := h.cart(w, r)
		if !ok {
			return
		}
		h.run(w, r, c.ClearCart)
	}
}

// Checkout returns the last known checkout URL without syncing.
func (h Handlers) Checkout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := h.cart(w, r)
		if !ok {
			return
		}
		url, ok := c.CheckoutURL()
		if !ok {
			responses.WriteError(r.Context(), h.Logger, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart has no checkout yet"))
			return
		}
		responses.WriteSuccess(w, dto.CheckoutResponse{CheckoutURL: url})
	}
}

func (h Handlers) cart(w http.ResponseWriter, r *http.Request) (Cart, bool) {
	if h.Carts == nil {
		responses.WriteError(r.Context(), h.Logger, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return nil, false
	}
	visitorID := middleware.VisitorIDFromContext(r.Context())
	if visitorID == "" {
		responses.WriteError(r.Context(), h.Logger, w, pkgerrors.New(pkgerrors.CodeValidation, "visitor id missing"))
		return nil, false
	}
	c, err := h.Carts.Get(r.Context(), visitorID)
	if err != nil {
		responses.WriteError(r.Context(), h.Logger, w, storeErr(err))
		return nil, false
	}
	return c, true
}

// run executes an intent and writes its snapshot. On failure the snapshot
// the store settled on rides along in error.details.cart.
func (h Handlers) run(w http.ResponseWriter, r *http.Request, intent func(context.Context) (cartsvc.Snapshot, error)) {
	ctx := r.Context()
	if h.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.WaitTimeout)
		defer cancel()
	}
	snap, err := intent(ctx)
	if err != nil {
		responses.WriteErrorWith(r.Context(), h.Logger, w, storeErr(err), map[string]any{"cart": snap})
		return
	}
	responses.WriteSuccess(w, snap)
}

func storeErr(err error) error {
	if errors.Is(err, cartsvc.ErrStoreClosed) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart is restarting")
	}
	return err
}
