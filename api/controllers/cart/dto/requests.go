package dto

// AddLineRequest adds quantity units of the product identified by slug.
type AddLineRequest struct {
	Slug     string `json:"slug" validate:"required,slug"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

// UpdateLineRequest sets a line's quantity; zero removes it.
type UpdateLineRequest struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=0"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}
