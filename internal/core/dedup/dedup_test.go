package dedup

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSeenMark(t *testing.T) {
	s := New(10)
	if s.Seen("comment:1") {
		t.Fatalf("fresh set should not have the key")
	}
	s.Mark("comment:1")
	s.Mark("comment:1")
	if !s.Seen("comment:1") {
		t.Fatalf("expected key after mark")
	}
	if s.Len() != 1 {
		t.Fatalf("double mark should not grow the set, len=%d", s.Len())
	}
}

func TestCheckAndMarkFirstSightOnly(t *testing.T) {
	s := New(10)
	if !s.CheckAndMark("k") {
		t.Fatalf("first sighting should report true")
	}
	if s.CheckAndMark("k") {
		t.Fatalf("second sighting should report false")
	}
}

func TestCheckAndMarkConcurrent(t *testing.T) {
	s := New(1000)
	const workers = 64

	var first atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.CheckAndMark("dm:42:1700000000:abc") {
				first.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if first.Load() != 1 {
		t.Fatalf("exactly one goroutine should see the key first, got %d", first.Load())
	}
}

func TestEvictsOldestTenth(t *testing.T) {
	s := New(20)
	for i := range 21 {
		s.Mark(fmt.Sprintf("k%d", i))
	}
	// 21 > 20 evicts 21/10 = 2 oldest
	if s.Len() != 19 {
		t.Fatalf("want 19 after eviction, got %d", s.Len())
	}
	if s.Seen("k0") || s.Seen("k1") {
		t.Fatalf("oldest keys should be gone")
	}
	if !s.Seen("k2") || !s.Seen("k20") {
		t.Fatalf("newer keys should survive")
	}
}

func TestEvictsAtLeastOne(t *testing.T) {
	s := New(3)
	for _, k := range []string{"a", "b", "c", "d"} {
		s.Mark(k)
	}
	if s.Seen("a") {
		t.Fatalf("oldest should be evicted")
	}
	if s.Len() != 3 {
		t.Fatalf("want 3, got %d", s.Len())
	}
}

func TestKeys(t *testing.T) {
	if got := CommentKey("179"); got != "comment:179" {
		t.Fatalf("comment key: %q", got)
	}
	if got := MentionKey("", "m1"); got != "mention:m1" {
		t.Fatalf("mention key fallback: %q", got)
	}
	if got := MentionKey("c1", "m1"); got != "mention:c1" {
		t.Fatalf("mention key: %q", got)
	}

	a := MessageKey("42", "1700000000", "price?")
	b := MessageKey("42", "1700000000", "price?")
	c := MessageKey("42", "1700000000", "price!")
	if a != b {
		t.Fatalf("same event must map to the same key")
	}
	if a == c {
		t.Fatalf("different text must map to a different key")
	}
	if !strings.HasPrefix(a, "dm:42:1700000000:") || len(a) != len("dm:42:1700000000:")+16 {
		t.Fatalf("unexpected dm key shape %q", a)
	}
}
