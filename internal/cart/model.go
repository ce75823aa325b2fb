package cart

import (
	"github.com/angelmondragon/courtside-storefront/pkg/money"
)

// Line is one variant in the cart. The cart never holds two lines for the
// same VariantID and never holds a line with Quantity below 1.
type Line struct {
	VariantID    string      `json:"variant_id"`
	RemoteLineID string      `json:"-"`
	Slug         string      `json:"slug,omitempty"`
	ProductTitle string      `json:"product_title"`
	VariantTitle string      `json:"variant_title"`
	ImageURL     string      `json:"image_url,omitempty"`
	Quantity     int         `json:"quantity"`
	UnitPrice    money.Money `json:"unit_price"`

	// extraLineIDs are further remote lines for the same variant, folded
	// into this one.
	extraLineIDs []string
}

// remoteLineIDs lists every remote line backing l.
func (l Line) remoteLineIDs() []string {
	ids := make([]string, 0, 1+len(l.extraLineIDs))
	if l.RemoteLineID != "" {
		ids = append(ids, l.RemoteLineID)
	}
	return append(ids, l.extraLineIDs...)
}

// SessionHandle is the durable reference to the remote cart.
type SessionHandle struct {
	ID          string
	CheckoutURL string
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

// Snapshot is the read model handed to UI surfaces. ItemCount and Total are
// derived from Lines every time a snapshot is taken.
type Snapshot struct {
	Lines         []Line       `json:"lines"`
	ItemCount     int          `json:"item_count"`
	Total         money.Money  `json:"total"`
	MixedCurrency bool         `json:"mixed_currency,omitempty"`
	Status        Status       `json:"status"`
	Syncing       bool         `json:"syncing"`
	Pending       int          `json:"pending"`
	CheckoutURL   string       `json:"checkout_url,omitempty"`
	LastError     *FailureInfo `json:"last_error,omitempty"`
}

// Line returns the snapshot line for a variant.
func (s Snapshot) Line(variantID string) (Line, bool) {
	for _, l := range s.Lines {
		if l.VariantID == variantID {
			return l, true
		}
	}
	return Line{}, false
}

func cloneLines(lines []Line) []Line {
	if len(lines) == 0 {
		return nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

func indexOf(lines []Line, variantID string) int {
	for i, l := range lines {
		if l.VariantID == variantID {
			return i
		}
	}
	return -1
}

func itemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func total(lines []Line) (money.Money, error) {
	sum := money.Money{}
	for _, l := range lines {
		next, err := sum.Add(l.UnitPrice.Mul(l.Quantity))
		if err != nil {
			return money.Money{}, err
		}
		sum = next
	}
	return sum, nil
}
