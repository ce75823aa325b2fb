package catalog

import (
	"github.com/angelmondragon/courtside-storefront/pkg/money"
)

// Product is a remote catalog entry. Handle doubles as the local slug.
type Product struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Images      []Image   `json:"images"`
	Variants    []Variant `json:"variants"`
}

type Image struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
}

// Variant is a purchasable configuration; ID is the only key the remote cart accepts.
type Variant struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Options          []Option    `json:"options"`
	Price            money.Money `json:"price"`
	AvailableForSale bool        `json:"available_for_sale"`
}

type Option struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ResolvedVariant is what the resolver hands to the cart for a slug.
type ResolvedVariant struct {
	Slug             string      `json:"slug"`
	ProductID        string      `json:"product_id"`
	ProductTitle     string      `json:"product_title"`
	VariantID        string      `json:"variant_id"`
	VariantTitle     string      `json:"variant_title"`
	ImageURL         string      `json:"image_url,omitempty"`
	Price            money.Money `json:"price"`
	AvailableForSale bool        `json:"available_for_sale"`
}

func resolvedFrom(p Product, v Variant) ResolvedVariant {
	rv := ResolvedVariant{
		Slug:             p.Handle,
		ProductID:        p.ID,
		ProductTitle:     p.Title,
		VariantID:        v.ID,
		VariantTitle:     v.Title,
		Price:            v.Price,
		AvailableForSale: v.AvailableForSale,
	}
	if len(p.Images) > 0 {
		rv.ImageURL = p.Images[0].URL
	}
	return rv
}
