package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrValidation, "edge references unknown node")
	want := "[VALIDATION] edge references unknown node"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestError_WithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(ErrNodeExecution, "skill call failed").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match the cause")
	}
	if err.Error() != "[NODE_EXECUTION] skill call failed: connection refused" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestGetErrorCode(t *testing.T) {
	err := NewError(ErrTimeout, "node exceeded budget").WithRetryable(true)
	wrapped := fmt.Errorf("node a: %w", err)

	if code := GetErrorCode(wrapped); code != ErrTimeout {
		t.Errorf("expected TIMEOUT, got %s", code)
	}
	if !IsRetryable(wrapped) {
		t.Error("expected wrapped error to be retryable")
	}
	if code := GetErrorCode(errors.New("plain")); code != "" {
		t.Errorf("expected empty code for plain error, got %s", code)
	}
}

func TestAsError(t *testing.T) {
	err := NewError(ErrConcurrencyLimit, "admission rejected").WithNodeID("")
	wrapped := fmt.Errorf("execute: %w", err)

	e, ok := AsError(wrapped)
	if !ok {
		t.Fatal("expected AsError to succeed")
	}
	if e.Code != ErrConcurrencyLimit {
		t.Errorf("unexpected code: %s", e.Code)
	}
	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("expected AsError to fail for plain error")
	}
}
