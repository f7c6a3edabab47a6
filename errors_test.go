package axi4bus

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("SubmitWrite", ErrCodeInvalidSize, "size_log2 exceeds bus width")

	if err.Op != "SubmitWrite" {
		t.Errorf("Op = %s, want SubmitWrite", err.Op)
	}
	if err.Code != ErrCodeInvalidSize {
		t.Errorf("Code = %s, want %s", err.Code, ErrCodeInvalidSize)
	}

	expected := "axi4bus: size_log2 exceeds bus width (op=SubmitWrite)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestTokenError(t *testing.T) {
	err := NewTokenError("Submit", 42, ErrCodeDuplicateToken, "token already active")

	if err.Token != 42 {
		t.Errorf("Token = %d, want 42", err.Token)
	}

	expected := "axi4bus: token already active (op=Submit)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestWrapError(t *testing.T) {
	inner := errors.New("beat arrived with unknown id")
	err := WrapError("ResponseTask", ErrCodeUnknownID, inner)

	if err.Code != ErrCodeUnknownID {
		t.Errorf("Code = %s, want %s", err.Code, ErrCodeUnknownID)
	}
	if !errors.Is(err, inner) {
		t.Error("expected wrapped error to satisfy errors.Is for the inner error")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("PlanBurst", ErrCodeEmptyRequest, "data_length is zero")

	if !IsCode(err, ErrCodeEmptyRequest) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeInvalidSize) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeEmptyRequest) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestErrorIs(t *testing.T) {
	a := NewError("op", ErrCodeUnknownID, "msg one")
	b := NewError("other_op", ErrCodeUnknownID, "msg two")
	c := NewError("op", ErrCodeProtocolViolation, "msg one")

	if !errors.Is(a, b) {
		t.Error("expected errors with the same code to match via errors.Is")
	}
	if errors.Is(a, c) {
		t.Error("expected errors with different codes not to match")
	}
}
