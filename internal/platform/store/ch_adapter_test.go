package store

import (
	"context"
	"errors"
	"testing"

	"instapilot/internal/platform/store/ch"
)

func TestCHAdapterWithoutConnection(t *testing.T) {
	a := &chAdapter{c: &ch.CH{}}
	ctx := context.Background()

	if err := a.Insert(ctx, "automation_audit", []string{"x"}); err == nil || errors.Is(err, ch.ErrClosed) {
		t.Fatalf("wrong row shape must be rejected before the driver, got %v", err)
	}
	if err := a.Insert(ctx, "automation_audit", [][]any{{"a-1"}}); !errors.Is(err, ch.ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
	if _, err := a.Query(ctx, "SELECT count() FROM automation_audit"); !errors.Is(err, ch.ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
	if err := a.Ping(ctx); !errors.Is(err, ch.ErrClosed) {
		t.Fatalf("want ErrClosed from ping, got %v", err)
	}
}
