package domain

import (
	"errors"
	"testing"
)

func TestUpstreamError_UnwrapsUnderlyingError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUpstreamError(ErrKindUpstreamConnect, "req1", "primary@https://a.example", 0, cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to see through Unwrap to the underlying cause")
	}
	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestUpstreamError_HTTPStatusOmitsNilCause(t *testing.T) {
	err := NewUpstreamError(ErrKindUpstreamHTTP, "req1", "primary@https://a.example", 429, nil)
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty error message for an HTTP-status upstream error")
	}
}

func TestNewCredentialMissingError_SetsKind(t *testing.T) {
	err := NewCredentialMissingError("groups[].auth_token_env", "ZEPHYR_TOKEN", "not set")
	if err.Kind != ErrKindCredentialMissing {
		t.Fatalf("expected ErrKindCredentialMissing, got %s", err.Kind)
	}
}

func TestNewBindFailedError_SetsKind(t *testing.T) {
	err := NewBindFailedError(":8080", errors.New("address already in use"))
	if err.Kind != ErrKindBindFailed {
		t.Fatalf("expected ErrKindBindFailed, got %s", err.Kind)
	}
}
