// Package sessions persists the per-visitor cart session handle.
package sessions

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when a visitor has no stored handle.
var ErrNotFound = errors.New("cart session handle not found")

// Store holds one opaque value per visitor.
type Store interface {
	Load(ctx context.Context, visitorID string) (string, error)
	Save(ctx context.Context, visitorID, value string) error
	Delete(ctx context.Context, visitorID string) error
}
