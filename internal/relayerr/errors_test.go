package relayerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestOperationalError_Error(t *testing.T) {
	err := NewOperational(CodeTimeout, "tool did not answer in 5s")
	want := "TIMEOUT: tool did not answer in 5s"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestOperationalError_WithDetail(t *testing.T) {
	err := NewOperational(CodeCapabilityMissing, "adapter lacks apply").
		WithDetail("required_capability", "apply").
		WithDetail("adapter_id", "null")

	if err.Details["required_capability"] != "apply" {
		t.Errorf("missing detail, got %v", err.Details)
	}
	if err.Details["adapter_id"] != "null" {
		t.Errorf("missing detail, got %v", err.Details)
	}
}

func TestAsOperational_Wrapped(t *testing.T) {
	inner := NewOperational(CodeNonzeroExit, "exit 2")
	wrapped := fmt.Errorf("dispatch step s1: %w", inner)

	oe, ok := AsOperational(wrapped)
	if !ok {
		t.Fatal("AsOperational() failed to find wrapped error")
	}
	if oe.Code != CodeNonzeroExit {
		t.Errorf("Code = %s, want NONZERO_EXIT", oe.Code)
	}
}

func TestBugError_Unwrap(t *testing.T) {
	cause := errors.New("index out of range")
	bug := WrapUnknown(cause)

	if !errors.Is(bug, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if bug.Code != CodeUnknown {
		t.Errorf("Code = %s, want UNKNOWN_ERROR", bug.Code)
	}
}

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"operational", NewOperational(CodePolicyDenied, "apply not allowed"), CodePolicyDenied},
		{"bug", NewBug("invariant broken"), CodeBug},
		{"wrapped operational", fmt.Errorf("outer: %w", NewOperational(CodeTimeout, "t")), CodeTimeout},
		{"plain", errors.New("something"), CodeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.want {
				t.Errorf("CodeOf() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestIsOperational_IsBug_Disjoint(t *testing.T) {
	oe := NewOperational(CodeTimeout, "t")
	be := NewBug("b")

	if !IsOperational(oe) || IsBug(oe) {
		t.Error("operational error misclassified")
	}
	if !IsBug(be) || IsOperational(be) {
		t.Error("bug error misclassified")
	}
}
