// Package domain defines inbound webhook events and the gateway ports
package domain

import (
	"time"

	accounts "instapilot/internal/services/accounts/domain"
)

// Kind classifies an inbound event
type Kind string

// Event kinds
const (
	KindComment Kind = "comment"
	KindMention Kind = "mention"
	KindMessage Kind = "message"
)

// Event is one parsed, owned platform event
type Event struct {
	Kind Kind   `json:"kind"`
	Key  string `json:"key"`

	// Owner is the connected account the event was delivered to
	Owner accounts.Account `json:"owner"`

	Field        string    `json:"field,omitempty"`
	CommentID    string    `json:"comment_id,omitempty"`
	MediaID      string    `json:"media_id,omitempty"`
	SenderID     string    `json:"sender_id"`
	SenderHandle string    `json:"sender_handle,omitempty"`
	Text         string    `json:"text"`
	At           time.Time `json:"at"`
}

// Summary reports what one delivery did; it never leaves the process
type Summary struct {
	Entries    int `json:"entries"`
	Events     int `json:"events"`
	Handled    int `json:"handled"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Unowned    int `json:"unowned"`
	Failed     int `json:"failed"`
}

// Envelope is the raw delivery body
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one account's slice of a delivery
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Changes   []Change    `json:"changes,omitempty"`
	Messaging []Messaging `json:"messaging,omitempty"`
}

// Change is the comment and mention shape
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries the fields used by comments, live comments and mentions
type ChangeValue struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	From      *User  `json:"from,omitempty"`
	Media     *Media `json:"media,omitempty"`
	MediaID   string `json:"media_id,omitempty"`
	CommentID string `json:"comment_id,omitempty"`
}

// User is a platform user reference
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// Media is a post reference
type Media struct {
	ID string `json:"id"`
}

// Messaging is the direct message shape
type Messaging struct {
	Sender    User     `json:"sender"`
	Recipient User     `json:"recipient"`
	Timestamp int64    `json:"timestamp"`
	Message   *Message `json:"message,omitempty"`
}

// Message is the body of a direct message
type Message struct {
	MID    string `json:"mid"`
	Text   string `json:"text"`
	IsEcho bool   `json:"is_echo,omitempty"`
}
