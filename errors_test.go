package gigavector

import (
	"errors"
	"testing"
)

func TestErrorUnwrapsToSentinel(t *testing.T) {
	err := wrapError("add", KindInvalidArgument, ErrDimensionMismatch)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Error("expected wrapped error to unwrap to ErrDimensionMismatch")
	}
}

func TestErrorStringIncludesOpAndKind(t *testing.T) {
	err := wrapError("search", KindNotFound, ErrRowNotFound)
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
	var gigaErr *Error
	if !errors.As(err, &gigaErr) {
		t.Fatal("expected errors.As to find the underlying *Error")
	}
	if gigaErr.Op != "search" || gigaErr.Kind != KindNotFound {
		t.Errorf("expected op=search kind=not_found, got op=%s kind=%s", gigaErr.Op, gigaErr.Kind)
	}
}

func TestClassifyMapsKnownSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrDimensionMismatch, KindInvalidArgument},
		{ErrEmptyQuery, KindInvalidArgument},
		{ErrRowNotFound, KindNotFound},
		{ErrIndexNotTrained, KindTrainingFailed},
	}
	for _, c := range cases {
		if got := classify(c.err); got != c.want {
			t.Errorf("classify(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestWrapErrorPassesThroughNil(t *testing.T) {
	if err := wrapError("op", KindIoError, nil); err != nil {
		t.Errorf("expected wrapError(nil) to return nil, got %v", err)
	}
}
