package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/courtside-storefront/internal/commerce"
	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
	"go.uber.org/multierr"
)

var (
	// ErrStoreClosed is returned to intents issued after the store shut down.
	ErrStoreClosed = errors.New("cart store closed")
	// ErrSyncPending means the caller stopped waiting; the sync still runs.
	ErrSyncPending = errors.New("cart sync still pending")
	// ErrLineNotFound is returned when an intent names a variant not in the cart.
	ErrLineNotFound = errors.New("cart line not found")
)

// Kind classifies failures so a UI can pick retry, rollback toast, or a
// disabled affordance.
type Kind string

const (
	KindResolution Kind = "resolution"
	KindTransport  Kind = "transport"
	KindSemantic   Kind = "semantic"
	KindStale      Kind = "stale_session"
	KindMissing    Kind = "missing_line"
	KindValidation Kind = "validation"
	KindInternal   Kind = "internal"
)

// KindOf maps an error to its failure kind.
func KindOf(err error) Kind {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeProductUnavailable:
		return KindResolution
	case pkgerrors.CodeDependency:
		return KindTransport
	case pkgerrors.CodeCartRejected:
		return KindSemantic
	case pkgerrors.CodeNotFound:
		if errors.Is(err, commerce.ErrSessionNotFound) {
			return KindStale
		}
		return KindMissing
	case pkgerrors.CodeValidation:
		return KindValidation
	default:
		return KindInternal
	}
}

// FailureInfo is the last sync failure as shown to a shopper.
type FailureInfo struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func failureInfo(err error) *FailureInfo {
	if err == nil {
		return nil
	}
	code := pkgerrors.CodeOf(err)
	msg := pkgerrors.MetadataFor(code).PublicMessage
	if code == pkgerrors.CodeCartRejected {
		if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
			msg = typed.Message()
		}
	}
	return &FailureInfo{Kind: KindOf(err), Code: string(code), Message: msg}
}

// LineFailure is one line a clear could not remove.
type LineFailure struct {
	VariantID string `json:"variant_id"`
	LineID    string `json:"-"`
	Err       error  `json:"-"`
}

// ClearError reports the lines left behind by a partially failed clear.
type ClearError struct {
	Failures []LineFailure
	combined error
}

func newClearError(failures []LineFailure) *ClearError {
	var combined error
	for _, f := range failures {
		combined = multierr.Append(combined, f.Err)
	}
	return &ClearError{Failures: failures, combined: combined}
}

func (e *ClearError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.VariantID)
	}
	return fmt.Sprintf("clear cart: %d line(s) not removed [%s]: %v", len(e.Failures), strings.Join(ids, ", "), e.combined)
}

func (e *ClearError) Unwrap() []error {
	return multierr.Errors(e.combined)
}

// asTyped wraps a clear failure so it carries the code of its first line error.
func (e *ClearError) asTyped() error {
	code := pkgerrors.CodeDependency
	if len(e.Failures) > 0 {
		code = pkgerrors.CodeOf(e.Failures[0].Err)
	}
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.VariantID)
	}
	return pkgerrors.Wrap(code, e, "some cart lines could not be removed").
		WithDetails(map[string]any{"failed_variants": ids})
}
