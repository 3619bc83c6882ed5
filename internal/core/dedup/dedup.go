// Package dedup is a bounded, insertion-ordered idempotency set for inbound events
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// DefaultCapacity bounds the set when no capacity is configured
const DefaultCapacity = 10_000

// evictFraction is the share of keys dropped when capacity is exceeded
const evictFraction = 10

// Set remembers recently processed event keys; safe for concurrent use
type Set struct {
	mu    sync.Mutex
	cap   int
	keys  map[string]struct{}
	order []string
}

// New returns a Set holding at most capacity keys
func New(capacity int) *Set {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Set{
		cap:   capacity,
		keys:  make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
	}
}

// Seen reports whether key is currently remembered
func (s *Set) Seen(key string) bool {
	s.mu.Lock()
	_, ok := s.keys[key]
	s.mu.Unlock()
	return ok
}

// Mark remembers key; marking an existing key is a no-op
func (s *Set) Mark(key string) {
	s.mu.Lock()
	s.markLocked(key)
	s.mu.Unlock()
}

// CheckAndMark marks key and reports whether this was its first sighting.
// Concurrent callers with the same key get exactly one true
func (s *Set) CheckAndMark(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.markLocked(key)
	return true
}

// Len returns the number of remembered keys
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Set) markLocked(key string) {
	if _, ok := s.keys[key]; ok {
		return
	}
	s.keys[key] = struct{}{}
	s.order = append(s.order, key)
	if len(s.order) > s.cap {
		s.evictLocked()
	}
}

// evictLocked drops the oldest tenth of the keys, at least one
func (s *Set) evictLocked() {
	n := max(1, len(s.order)/evictFraction)
	for _, k := range s.order[:n] {
		delete(s.keys, k)
	}
	rest := copy(s.order, s.order[n:])
	clear(s.order[rest:])
	s.order = s.order[:rest]
}

// CommentKey is the key for a comment event
func CommentKey(commentID string) string { return "comment:" + commentID }

// MentionKey is the key for a mention; the comment id wins over the media id
func MentionKey(commentID, mediaID string) string {
	if commentID != "" {
		return "mention:" + commentID
	}
	return "mention:" + mediaID
}

// MessageKey is the key for a direct message. Text is hashed so keys stay short
func MessageKey(senderID, providerTimestamp, text string) string {
	sum := sha256.Sum256([]byte(text))
	var b strings.Builder
	b.Grow(len(senderID) + len(providerTimestamp) + 24)
	b.WriteString("dm:")
	b.WriteString(senderID)
	b.WriteByte(':')
	b.WriteString(providerTimestamp)
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(sum[:8]))
	return b.String()
}
