package commerce

import (
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/courtside-storefront/pkg/money"
)

// ErrSessionNotFound marks a remote cart that expired or was converted to an order.
var ErrSessionNotFound = errors.New("cart session not found")

// Session is the authoritative remote cart returned by every successful call.
type Session struct {
	ID            string
	CheckoutURL   string
	Lines         []RemoteLine
	Subtotal      money.Money
	TotalQuantity int
}

// RemoteLine is one line of a remote cart.
type RemoteLine struct {
	ID            string
	VariantID     string
	Quantity      int
	UnitPrice     money.Money
	ProductHandle string
	ProductTitle  string
	VariantTitle  string
	ImageURL      string
}

// LineInput requests a quantity of a variant.
type LineInput struct {
	VariantID string `json:"merchandiseId"`
	Quantity  int    `json:"quantity"`
}

// UserErrorDetail is a single rejection reported by the storefront API.
type UserErrorDetail struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

// UserError carries the storefront's own rejection messages for a mutation.
type UserError struct {
	Operation string
	Errors    []UserErrorDetail
}

func (e *UserError) Error() string {
	if e == nil {
		return "storefront user errors"
	}
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("storefront %s rejected: %s", e.Operation, msg)
	}
	return fmt.Sprintf("storefront %s rejected", e.Operation)
}

// Message joins the rejection messages as the storefront worded them.
func (e *UserError) Message() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Errors))
	for _, detail := range e.Errors {
		if msg := strings.TrimSpace(detail.Message); msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}

func (e *UserError) targetsCart() bool {
	for _, detail := range e.Errors {
		for _, field := range detail.Field {
			if field == "cartId" {
				return true
			}
		}
	}
	return false
}
