// Package responder produces reply text for armed automation events.
// Producers report Produced, Declined, or Failed; Fallback supplies a safe
// generic reply for the two non-success outcomes
package responder

import (
	"context"
	"math/rand/v2"
	"strings"
)

// Kind tags a producer outcome
type Kind uint8

const (
	// KindProduced carries reply text
	KindProduced Kind = iota
	// KindDeclined means the producer chose not to answer
	KindDeclined
	// KindFailed means the producer errored or was unavailable
	KindFailed
)

// String returns a stable label for audit rows
func (k Kind) String() string {
	switch k {
	case KindProduced:
		return "produced"
	case KindDeclined:
		return "declined"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the tagged producer outcome
type Result struct {
	Kind   Kind
	Text   string
	Reason string
}

// Produced returns a successful result
func Produced(text string) Result { return Result{Kind: KindProduced, Text: text} }

// Declined returns a decline with a reason
func Declined(reason string) Result { return Result{Kind: KindDeclined, Reason: reason} }

// Failed returns a failure carrying err's message
func Failed(err error) Result {
	r := Result{Kind: KindFailed}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

// Class is the event class a reply is produced for
type Class string

const (
	// ClassComment is a public comment reply or a private reply to a comment
	ClassComment Class = "comment"
	// ClassDM is a direct message reply
	ClassDM Class = "dm"
)

// Request is everything a producer may look at
type Request struct {
	Class        Class
	Text         string
	SenderHandle string
	RuleName     string
	AIContextual bool
	// Message is the rule's static reply, or guidance for contextual replies
	Message   string
	Templates []string
}

// Producer turns a Request into a reply
type Producer interface {
	Produce(ctx context.Context, req Request) Result
}

// Func adapts a plain function to Producer
type Func func(ctx context.Context, req Request) Result

// Produce implements Producer
func (f Func) Produce(ctx context.Context, req Request) Result { return f(ctx, req) }

// Static answers with the rule's own reply material and never calls out
type Static struct {
	Pick func(n int) int
}

// Produce implements Producer
func (s Static) Produce(_ context.Context, req Request) Result {
	if msg := strings.TrimSpace(req.Message); msg != "" {
		return Produced(msg)
	}
	if t := pickNonEmpty(req.Templates, s.pick()); t != "" {
		return Produced(t)
	}
	return Declined("rule has no reply text")
}

func (s Static) pick() func(int) int {
	if s.Pick != nil {
		return s.Pick
	}
	return rand.IntN
}

var defaultTemplates = map[Class][]string{
	ClassComment: {
		"Thanks so much for your comment!",
		"Thank you! We appreciate you being here.",
		"Thanks for the love! Check your DMs for more info.",
	},
	ClassDM: {
		"Thanks for your message! We'll get back to you shortly.",
		"Hi! Thanks for reaching out, someone from our team will reply soon.",
		"Thanks for getting in touch! We'll be in your inbox soon.",
	},
}

// Fallback returns a safe generic reply for req. Rule templates win over the
// built-in set. pick(n) must return a value in [0,n); nil uses math/rand
func Fallback(req Request, pick func(n int) int) string {
	if pick == nil {
		pick = rand.IntN
	}
	if t := pickNonEmpty(req.Templates, pick); t != "" {
		return t
	}
	set := defaultTemplates[req.Class]
	if len(set) == 0 {
		set = defaultTemplates[ClassDM]
	}
	return set[pick(len(set))]
}

func pickNonEmpty(in []string, pick func(int) int) string {
	clean := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return ""
	}
	return clean[pick(len(clean))]
}
