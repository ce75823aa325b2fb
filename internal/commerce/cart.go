package commerce

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
	"github.com/angelmondragon/courtside-storefront/pkg/money"
)

const maxCartLines = 100

const cartFields = `
fragment CartFields on Cart {
  id
  checkoutUrl
  totalQuantity
  cost { subtotalAmount { amount currencyCode } }
  lines(first: 100) {
    edges {
      node {
        id
        quantity
        cost { amountPerQuantity { amount currencyCode } }
        merchandise {
          ... on ProductVariant {
            id
            title
            image { url }
            product { handle title featuredImage { url } }
          }
        }
      }
    }
  }
}`

const userErrorFields = `userErrors { field message code }`

const (
	cartCreateMutation = `mutation cartCreate($input: CartInput!) {
  cartCreate(input: $input) { cart { ...CartFields } ` + userErrorFields + ` }
}` + cartFields

	cartLinesAddMutation = `mutation cartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) { cart { ...CartFields } ` + userErrorFields + ` }
}` + cartFields

	cartLinesUpdateMutation = `mutation cartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) { cart { ...CartFields } ` + userErrorFields + ` }
}` + cartFields

	cartLinesRemoveMutation = `mutation cartLinesRemove($cartId: ID!, $lineIds: [ID!]!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) { cart { ...CartFields } ` + userErrorFields + ` }
}` + cartFields

	cartQuery = `query cart($id: ID!) {
  cart(id: $id) { ...CartFields }
}` + cartFields
)

const (
	opCartCreate      = "cart_create"
	opCartLinesAdd    = "cart_lines_add"
	opCartLinesUpdate = "cart_lines_update"
	opCartLinesRemove = "cart_lines_remove"
	opCartFetch       = "cart_fetch"
)

type moneyV2 struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type imageNode struct {
	URL string `json:"url"`
}

type cartNode struct {
	ID            string `json:"id"`
	CheckoutURL   string `json:"checkoutUrl"`
	TotalQuantity int    `json:"totalQuantity"`
	Cost          struct {
		SubtotalAmount moneyV2 `json:"subtotalAmount"`
	} `json:"cost"`
	Lines struct {
		Edges []struct {
			Node struct {
				ID       string `json:"id"`
				Quantity int    `json:"quantity"`
				Cost     struct {
					AmountPerQuantity moneyV2 `json:"amountPerQuantity"`
				} `json:"cost"`
				Merchandise struct {
					ID      string     `json:"id"`
					Title   string     `json:"title"`
					Image   *imageNode `json:"image"`
					Product struct {
						Handle        string     `json:"handle"`
						Title         string     `json:"title"`
						FeaturedImage *imageNode `json:"featuredImage"`
					} `json:"product"`
				} `json:"merchandise"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"lines"`
}

type cartPayload struct {
	Cart       *cartNode         `json:"cart"`
	UserErrors []UserErrorDetail `json:"userErrors"`
}

// CreateSession opens a new remote cart holding lines.
func (c *Client) CreateSession(ctx context.Context, lines []LineInput) (*Session, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	var data struct {
		Payload cartPayload `json:"cartCreate"`
	}
	vars := map[string]any{"input": map[string]any{"lines": nonNilLines(lines)}}
	if err := c.Execute(ctx, opCartCreate, cartCreateMutation, vars, &data); err != nil {
		return nil, err
	}
	return sessionFromPayload(opCartCreate, data.Payload)
}

// AddLines merges lines into an existing remote cart.
func (c *Client) AddLines(ctx context.Context, sessionID string, lines []LineInput) (*Session, error) {
	if err := requireSessionID(sessionID); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	var data struct {
		Payload cartPayload `json:"cartLinesAdd"`
	}
	vars := map[string]any{"cartId": sessionID, "lines": lines}
	if err := c.Execute(ctx, opCartLinesAdd, cartLinesAddMutation, vars, &data); err != nil {
		return nil, err
	}
	return sessionFromPayload(opCartLinesAdd, data.Payload)
}

// UpdateLineQuantity sets a remote line's quantity; zero removes the line.
func (c *Client) UpdateLineQuantity(ctx context.Context, sessionID, lineID string, quantity int) (*Session, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if quantity == 0 {
		return c.RemoveLine(ctx, sessionID, lineID)
	}
	if err := requireSessionID(sessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(lineID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line id is required")
	}
	var data struct {
		Payload cartPayload `json:"cartLinesUpdate"`
	}
	vars := map[string]any{
		"cartId": sessionID,
		"lines":  []map[string]any{{"id": lineID, "quantity": quantity}},
	}
	if err := c.Execute(ctx, opCartLinesUpdate, cartLinesUpdateMutation, vars, &data); err != nil {
		return nil, err
	}
	return sessionFromPayload(opCartLinesUpdate, data.Payload)
}

// RemoveLine deletes one remote line.
func (c *Client) RemoveLine(ctx context.Context, sessionID, lineID string) (*Session, error) {
	if strings.TrimSpace(lineID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line id is required")
	}
	return c.RemoveLines(ctx, sessionID, []string{lineID})
}

// RemoveLines deletes several remote lines in one mutation.
func (c *Client) RemoveLines(ctx context.Context, sessionID string, lineIDs []string) (*Session, error) {
	if err := requireSessionID(sessionID); err != nil {
		return nil, err
	}
	if len(lineIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line id is required")
	}
	var data struct {
		Payload cartPayload `json:"cartLinesRemove"`
	}
	vars := map[string]any{"cartId": sessionID, "lineIds": lineIDs}
	if err := c.Execute(ctx, opCartLinesRemove, cartLinesRemoveMutation, vars, &data); err != nil {
		return nil, err
	}
	return sessionFromPayload(opCartLinesRemove, data.Payload)
}

// FetchSession reads the remote cart. A missing cart yields ErrSessionNotFound.
func (c *Client) FetchSession(ctx context.Context, sessionID string) (*Session, error) {
	if err := requireSessionID(sessionID); err != nil {
		return nil, err
	}
	var data struct {
		Cart *cartNode `json:"cart"`
	}
	if err := c.Execute(ctx, opCartFetch, cartQuery, map[string]any{"id": sessionID}, &data); err != nil {
		return nil, err
	}
	if data.Cart == nil {
		return nil, sessionNotFound()
	}
	return toSession(data.Cart)
}

func sessionFromPayload(operation string, payload cartPayload) (*Session, error) {
	if len(payload.UserErrors) > 0 {
		ue := &UserError{Operation: operation, Errors: payload.UserErrors}
		if ue.targetsCart() {
			return nil, sessionNotFound()
		}
		msg := ue.Message()
		if msg == "" {
			msg = pkgerrors.MetadataFor(pkgerrors.CodeCartRejected).PublicMessage
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeCartRejected, ue, msg)
	}
	if payload.Cart == nil {
		return nil, sessionNotFound()
	}
	return toSession(payload.Cart)
}

func toSession(node *cartNode) (*Session, error) {
	subtotal, err := parseMoney(node.Cost.SubtotalAmount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse cart subtotal")
	}
	session := &Session{
		ID:            node.ID,
		CheckoutURL:   node.CheckoutURL,
		Subtotal:      subtotal,
		TotalQuantity: node.TotalQuantity,
		Lines:         make([]RemoteLine, 0, len(node.Lines.Edges)),
	}
	for _, edge := range node.Lines.Edges {
		n := edge.Node
		unit, err := parseMoney(n.Cost.AmountPerQuantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse cart line price")
		}
		image := ""
		if n.Merchandise.Image != nil {
			image = n.Merchandise.Image.URL
		} else if n.Merchandise.Product.FeaturedImage != nil {
			image = n.Merchandise.Product.FeaturedImage.URL
		}
		session.Lines = append(session.Lines, RemoteLine{
			ID:            n.ID,
			VariantID:     n.Merchandise.ID,
			Quantity:      n.Quantity,
			UnitPrice:     unit,
			ProductHandle: n.Merchandise.Product.Handle,
			ProductTitle:  n.Merchandise.Product.Title,
			VariantTitle:  n.Merchandise.Title,
			ImageURL:      image,
		})
	}
	return session, nil
}

func parseMoney(m moneyV2) (money.Money, error) {
	if strings.TrimSpace(m.Amount) == "" {
		return money.Zero(m.CurrencyCode), nil
	}
	return money.New(m.Amount, m.CurrencyCode)
}

func sessionNotFound() error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrSessionNotFound, "cart session not found")
}

func requireSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return nil
}

func validateLines(lines []LineInput) error {
	if len(lines) > maxCartLines {
		return pkgerrors.New(pkgerrors.CodeValidation, "too many cart lines")
	}
	for _, line := range lines {
		if strings.TrimSpace(line.VariantID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
		}
		if line.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
	}
	return nil
}

func nonNilLines(lines []LineInput) []LineInput {
	if lines == nil {
		return []LineInput{}
	}
	return lines
}
