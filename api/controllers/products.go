package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/courtside-storefront/api/responses"
	"github.com/angelmondragon/courtside-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
	"github.com/angelmondragon/courtside-storefront/pkg/logger"
)

// VariantResolver resolves product slugs to purchasable variants.
type VariantResolver interface {
	Resolve(ctx context.Context, slug string) (catalog.ResolvedVariant, error)
}

type availabilityResponse struct {
	Slug      string                   `json:"slug"`
	Available bool                     `json:"available"`
	Variant   *catalog.ResolvedVariant `json:"variant,omitempty"`
}

// ProductAvailability tells a product page whether to enable add-to-cart. A
// slug the catalog does not know is unavailable, not an error.
func ProductAvailability(resolver VariantResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		slug := chi.URLParam(r, "slug")
		rv, err := resolver.Resolve(r.Context(), slug)
		if err != nil {
			if pkgerrors.CodeOf(err) == pkgerrors.CodeProductUnavailable {
				responses.WriteSuccess(w, availabilityResponse{Slug: slug})
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availabilityResponse{Slug: slug, Available: rv.AvailableForSale, Variant: &rv})
	}
}
