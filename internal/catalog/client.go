package catalog

import (
	"context"

	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
	"github.com/angelmondragon/courtside-storefront/pkg/money"
)

const (
	defaultPageSize = 100
	maxPages        = 50
	opListProducts  = "products_list"
)

const productsQuery = `query products($first: Int!, $after: String) {
  products(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        id
        handle
        title
        description
        images(first: 10) { edges { node { url altText } } }
        variants(first: 50) {
          edges {
            node {
              id
              title
              availableForSale
              selectedOptions { name value }
              price { amount currencyCode }
            }
          }
        }
      }
    }
  }
}`

// Executor runs a GraphQL document against the storefront API.
type Executor interface {
	Execute(ctx context.Context, operation, query string, variables map[string]any, out any) error
}

// Client lists the remote product catalog.
type Client struct {
	exec     Executor
	pageSize int
}

func NewClient(exec Executor, pageSize int) *Client {
	if pageSize <= 0 || pageSize > 250 {
		pageSize = defaultPageSize
	}
	return &Client{exec: exec, pageSize: pageSize}
}

type productsPage struct {
	Products struct {
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Edges []struct {
			Node productNode `json:"node"`
		} `json:"edges"`
	} `json:"products"`
}

type productNode struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Images      struct {
		Edges []struct {
			Node struct {
				URL     string `json:"url"`
				AltText string `json:"altText"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"images"`
	Variants struct {
		Edges []struct {
			Node struct {
				ID               string   `json:"id"`
				Title            string   `json:"title"`
				AvailableForSale bool     `json:"availableForSale"`
				SelectedOptions  []Option `json:"selectedOptions"`
				Price            struct {
					Amount       string `json:"amount"`
					CurrencyCode string `json:"currencyCode"`
				} `json:"price"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

// ListProducts pages through the full catalog.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	if c == nil || c.exec == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog client not configured")
	}
	var (
		products []Product
		cursor   *string
	)
	for page := 0; page < maxPages; page++ {
		vars := map[string]any{"first": c.pageSize}
		if cursor != nil {
			vars["after"] = *cursor
		}
		var data productsPage
		if err := c.exec.Execute(ctx, opListProducts, productsQuery, vars, &data); err != nil {
			return nil, err
		}
		for _, edge := range data.Products.Edges {
			product, err := toProduct(edge.Node)
			if err != nil {
				return nil, err
			}
			products = append(products, product)
		}
		info := data.Products.PageInfo
		if !info.HasNextPage || info.EndCursor == "" {
			return products, nil
		}
		next := info.EndCursor
		cursor = &next
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog paging did not terminate")
}

func toProduct(node productNode) (Product, error) {
	product := Product{
		ID:          node.ID,
		Handle:      node.Handle,
		Title:       node.Title,
		Description: node.Description,
	}
	for _, edge := range node.Images.Edges {
		product.Images = append(product.Images, Image{URL: edge.Node.URL, AltText: edge.Node.AltText})
	}
	for _, edge := range node.Variants.Edges {
		v := edge.Node
		price, err := money.New(v.Price.Amount, v.Price.CurrencyCode)
		if err != nil {
			return Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse variant price").
				WithDetails(map[string]any{"variant_id": v.ID})
		}
		product.Variants = append(product.Variants, Variant{
			ID:               v.ID,
			Title:            v.Title,
			Options:          v.SelectedOptions,
			Price:            price,
			AvailableForSale: v.AvailableForSale,
		})
	}
	return product, nil
}
