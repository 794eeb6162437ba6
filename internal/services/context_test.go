package services_test

import (
	"context"
	"testing"

	"kinescope/internal/services"
)

func TestSessionIDRoundTrip(t *testing.T) {
	ctx := services.WithSessionID(context.Background(), "abc-123")
	id, ok := services.SessionIDFromContext(ctx)
	if !ok || id != "abc-123" {
		t.Fatalf("expected abc-123, got %q ok=%v", id, ok)
	}
}

func TestEmptyValuesIgnored(t *testing.T) {
	ctx := context.Background()
	if services.WithSessionID(ctx, "") != ctx {
		t.Fatal("empty session id should not allocate a new context")
	}
	if _, ok := services.ComponentFromContext(ctx); ok {
		t.Fatal("expected missing component")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected missing request id")
	}
}

func TestComponentAndRequestID(t *testing.T) {
	ctx := services.WithComponent(context.Background(), "watchdog")
	ctx = services.WithRequestID(ctx, "req-9")
	if c, ok := services.ComponentFromContext(ctx); !ok || c != "watchdog" {
		t.Fatalf("component = %q ok=%v", c, ok)
	}
	if r, ok := services.RequestIDFromContext(ctx); !ok || r != "req-9" {
		t.Fatalf("request id = %q ok=%v", r, ok)
	}
}
