package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestConstructorsSetTypeAndCode(t *testing.T) {
	cases := []struct {
		err  *AppError
		typ  ErrorType
		code string
	}{
		{NewValidationError("v", nil), ErrorTypeValidation, "VALIDATION_ERROR"},
		{NewNotFoundError("n", nil), ErrorTypeNotFound, "NOT_FOUND"},
		{NewUnauthorizedError("u", nil), ErrorTypeUnauthorized, "UNAUTHORIZED"},
		{NewForbiddenError("f", nil), ErrorTypeForbidden, "FORBIDDEN"},
		{NewConflictError("c", nil), ErrorTypeConflict, "REVISION_CONFLICT"},
		{NewTimeoutError("t", nil), ErrorTypeTimeout, "TIMEOUT"},
		{NewConnectionError("c", nil), ErrorTypeConnection, "CONNECTION_FAILED"},
		{NewUpstreamError("u", nil), ErrorTypeUpstream, "UPSTREAM_API_ERROR"},
		{NewInvalidTransitionError("i", nil), ErrorTypeInvalidTransition, "INVALID_TRANSITION"},
	}
	for _, tc := range cases {
		if tc.err.Type != tc.typ || tc.err.Code != tc.code {
			t.Fatalf("unexpected %s/%s for %s", tc.err.Type, tc.err.Code, tc.typ)
		}
		if TypeOf(fmt.Errorf("outer: %w", tc.err)) != tc.typ {
			t.Fatalf("type %s should be visible through wrapping", tc.typ)
		}
	}
	if NewProcessingError("p", nil).Code != "PROCESSING_ERROR" {
		t.Fatalf("unexpected processing code")
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewProcessingError("save chapter", cause)
	if err.Error() != "save chapter: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
}

func TestTypeOf(t *testing.T) {
	if TypeOf(NewConflictError("c", nil)) != ErrorTypeConflict {
		t.Fatalf("expected conflict type")
	}
	if TypeOf(errors.New("plain")) != ErrorTypeError {
		t.Fatalf("plain errors are processing errors")
	}
}

func TestWrapErrorKeepsType(t *testing.T) {
	if WrapError(nil, "x", ErrorTypeError) != nil {
		t.Fatalf("wrapping nil should stay nil")
	}
	wrapped := WrapError(NewNotFoundError("chapter a not found", nil), "load", ErrorTypeError)
	if TypeOf(wrapped) != ErrorTypeNotFound {
		t.Fatalf("expected not found to survive wrapping, got %v", wrapped)
	}
	if wrapped.Error() != "load: chapter a not found" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}

	plain := WrapError(errors.New("boom"), "list", ErrorTypeError)
	if TypeOf(plain) != ErrorTypeError {
		t.Fatalf("expected processing type, got %s", TypeOf(plain))
	}
}
