package status

import (
	"errors"
	"fmt"
	"testing"
)

func TestFromErrorNil(t *testing.T) {
	if st := FromError(nil); st != nil {
		t.Fatalf("expected nil status for nil error, got %v", st)
	}
}

func TestFromErrorPassthrough(t *testing.T) {
	orig := New(NotFound, "no such function")
	st := FromError(orig)
	if st != orig {
		t.Fatalf("expected the same *Status back, got %v", st)
	}
}

func TestFromErrorWrapped(t *testing.T) {
	orig := New(InvalidArgument, "bad args")
	wrapped := fmt.Errorf("dispatch failed: %w", orig)
	st := FromError(wrapped)
	if st.Code != InvalidArgument {
		t.Fatalf("expected wrapped code to survive, got %v", st.Code)
	}
}

func TestFromErrorOpaque(t *testing.T) {
	st := FromError(errors.New("boom"))
	if st.Code != Internal {
		t.Fatalf("expected Internal for opaque error, got %v", st.Code)
	}
	if st.Message != "boom" {
		t.Fatalf("expected message 'boom', got %q", st.Message)
	}
}

func TestErrorString(t *testing.T) {
	st := New(ResourceExhausted, "rate limit exceeded")
	want := "resource_exhausted: rate limit exceeded"
	if st.Error() != want {
		t.Fatalf("expected %q, got %q", want, st.Error())
	}
}
