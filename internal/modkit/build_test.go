package modkit

import (
	"net/http"
	"testing"
)

type needs struct{ Ceiling int }

func TestBuildLaterOptionsWin(t *testing.T) {
	b := Build(WithName("poller"), WithPrefix("/poller"), WithName("poller-v2"), WithPorts(needs{Ceiling: 200}))
	if b.Name != "poller-v2" || b.Prefix != "/poller" {
		t.Fatalf("unexpected identity %+v", b)
	}
	if n, ok := b.Ports.(needs); !ok || n.Ceiling != 200 {
		t.Fatalf("ports not carried: %#v", b.Ports)
	}
}

func TestBuildCopiesMiddleware(t *testing.T) {
	pass := func(next http.Handler) http.Handler { return next }
	opts := []Option{WithMiddlewares(pass), WithMiddlewares(pass, pass)}
	a := Build(opts...)
	if len(a.Mw) != 3 {
		t.Fatalf("want 3 middlewares, got %d", len(a.Mw))
	}
	a.Mw[0] = nil
	if b := Build(opts...); b.Mw[0] == nil {
		t.Fatalf("built middleware slices must not alias")
	}
}
