package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
)

type addLineBody struct {
	Slug     string `json:"slug" validate:"required,slug"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=99"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
		field   string
	}{
		{name: "valid", body: `{"slug":"pr8100-red","quantity":2}`},
		{name: "bad slug", body: `{"slug":"PR 8100","quantity":2}`, wantErr: true, field: "slug"},
		{name: "zero quantity", body: `{"slug":"pr8100","quantity":0}`, wantErr: true, field: "quantity"},
		{name: "unknown field", body: `{"slug":"pr8100","quantity":1,"price":1}`, wantErr: true},
		{name: "malformed", body: `{`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dest addLineBody
			err := DecodeJSONBody(req, &dest)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
			if err == nil {
				return
			}
			if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
				t.Fatalf("expected validation code, got %s", pkgerrors.CodeOf(err))
			}
			if tc.field != "" {
				details, _ := pkgerrors.As(err).Details().(map[string]string)
				if details[tc.field] == "" {
					t.Fatalf("expected detail for %s, got %v", tc.field, details)
				}
			}
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?refresh=true&variant_id=gid%3A%2F%2Fshopify%2FProductVariant%2F1&bad=maybe", nil)
	if v, err := ParseQueryBool(req, "refresh", false); err != nil || !v {
		t.Fatalf("refresh: %v %v", v, err)
	}
	if v, err := ParseQueryBool(req, "missing", true); err != nil || !v {
		t.Fatalf("default: %v %v", v, err)
	}
	if _, err := ParseQueryBool(req, "bad", false); err == nil {
		t.Fatalf("expected error for non boolean")
	}
	if v, err := RequireQuery(req, "variant_id"); err != nil || v != "gid://shopify/ProductVariant/1" {
		t.Fatalf("variant_id: %q %v", v, err)
	}
	if _, err := RequireQuery(req, "other"); err == nil {
		t.Fatalf("expected required error")
	}
}
