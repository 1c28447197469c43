package tenant

import (
	"context"
	"errors"
	"testing"
)

func TestNew_GeneratesRequestID(t *testing.T) {
	tc, err := New("acme", 2, "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tc.AppID != "acme" {
		t.Fatalf("expected app id acme, got %s", tc.AppID)
	}
	if tc.Clearance != 2 {
		t.Fatalf("expected clearance 2, got %d", tc.Clearance)
	}
	if tc.RequestID == "" {
		t.Fatal("expected generated request id")
	}
}

func TestNew_KeepsSuppliedRequestID(t *testing.T) {
	tc, err := New("acme", 0, "req-1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tc.RequestID != "req-1" {
		t.Fatalf("expected req-1, got %s", tc.RequestID)
	}
}

func TestNew_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name      string
		appID     string
		clearance int
	}{
		{name: "empty tenant", appID: "", clearance: 0},
		{name: "whitespace tenant", appID: "   ", clearance: 0},
		{name: "tenant with space", appID: "a b", clearance: 0},
		{name: "negative clearance", appID: "acme", clearance: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.appID, tt.clearance, "")
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	tc, err := New("acme", 1, "req-42")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	ctx := WithContext(context.Background(), tc)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected tenant context present")
	}
	if got != tc {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, tc)
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no tenant context on fresh context")
	}
}
