package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeProductUnavailable, status: http.StatusUnprocessableEntity, publicMsg: "product currently unavailable", detailsOK: true},
		{code: CodeCartRejected, status: http.StatusUnprocessableEntity, publicMsg: "cart update rejected", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "something went wrong, please try again", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeCartRejected, "only 2 left in stock"))
	if got := As(err); got == nil || got.Code() != CodeCartRejected {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestCodeOfAndRetryable(t *testing.T) {
	if got := CodeOf(stdErrors.New("plain")); got != CodeInternal {
		t.Fatalf("expected internal for untyped error, got %s", got)
	}
	if !IsRetryable(Wrap(CodeDependency, stdErrors.New("timeout"), "fetch")) {
		t.Fatalf("dependency errors should be retryable")
	}
	if IsRetryable(New(CodeCartRejected, "sold out")) {
		t.Fatalf("semantic rejections must not be retryable")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil is never retryable")
	}
}

func TestDumpWalksChain(t *testing.T) {
	err := fmt.Errorf("sync: %w", Wrap(CodeDependency, stdErrors.New("dial tcp"), "storefront cartCreate failed"))
	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code in dump, got %s", dump.Code)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(dump.Chain), dump.Chain)
	}
}

func TestDumpExpandsJoinedCauses(t *testing.T) {
	joined := stdErrors.Join(
		New(CodeCartRejected, "line is sold out"),
		Wrap(CodeDependency, stdErrors.New("i/o timeout"), "storefront cartLinesRemove failed"),
	)
	dump := Dump(Wrap(CodeDependency, joined, "clear cart"))
	if !dump.Retryable {
		t.Fatalf("dependency failures should dump as retryable")
	}
	// wrapper, join, rejected, dependency wrapper, i/o timeout
	if len(dump.Chain) != 5 {
		t.Fatalf("expected 5 chain entries, got %d: %v", len(dump.Chain), dump.Chain)
	}
	if strings.HasPrefix(dump.Chain[1], " ") || !strings.HasPrefix(dump.Chain[2], "  ") || !strings.HasPrefix(dump.Chain[4], "  ") {
		t.Fatalf("expected joined causes to be indented, got %q", dump.Chain)
	}
}
