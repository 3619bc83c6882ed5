// Package domain defines automation rules, decisions and audit records
package domain

import (
	"time"

	accounts "instapilot/internal/services/accounts/domain"
)

// RuleType is the event class a rule answers
type RuleType string

// Rule types
const (
	RuleComment   RuleType = "comment"
	RuleDM        RuleType = "dm"
	RuleCommentDM RuleType = "comment_dm"
)

// Class is the class of an inbound event
type Class string

// Event classes
const (
	ClassComment Class = "comment"
	ClassDM      Class = "dm"
	ClassMention Class = "mention"
)

// Triggers decide whether a rule fires for some text
type Triggers struct {
	Keywords        []string `json:"keywords"`
	Hashtags        []string `json:"hashtags"`
	AIContextual    bool     `json:"ai_contextual"`
	PostInteraction bool     `json:"post_interaction"`
}

// Schedule bounds when a rule may fire, in the account's time zone
type Schedule struct {
	// ActiveDays are ISO weekdays, 1 is Monday and 7 is Sunday; empty means every day
	ActiveDays []int `json:"active_days"`
	// ActiveHours is "HH:MM-HH:MM", end exclusive; empty means all day
	ActiveHours string     `json:"active_hours"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	ExpiryDays  int        `json:"expiry_days,omitempty"`
}

// Conditions limit how often and for what a rule fires
type Conditions struct {
	MaxPerDay       int      `json:"max_per_day"`
	ExcludeKeywords []string `json:"exclude_keywords"`
	// TimeDelay is a minimum wait before replying, in seconds
	TimeDelay int `json:"time_delay"`
}

// Reply is the static reply material handed to the producer
type Reply struct {
	Message   string   `json:"message"`
	Templates []string `json:"templates"`
	// Strict drops the reply instead of falling back when the producer has nothing
	Strict bool `json:"strict"`
}

// Rule is one stored automation
type Rule struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name"`
	Type        RuleType   `json:"type"`
	Triggers    Triggers   `json:"triggers"`
	Schedule    Schedule   `json:"schedule"`
	Conditions  Conditions `json:"conditions"`
	Reply       Reply      `json:"reply"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Answers reports whether the rule type can govern events of class c
func (r Rule) Answers(c Class) bool {
	switch c {
	case ClassComment:
		return r.Type == RuleComment || r.Type == RuleCommentDM || (r.Type == RuleDM && r.Triggers.PostInteraction)
	case ClassDM:
		return r.Type == RuleDM
	}
	return false
}

// Event is an inbound, deduplicated event for one account
type Event struct {
	Class        Class
	Key          string
	Account      accounts.Account
	Text         string
	SenderID     string
	SenderHandle string
	CommentID    string
	MediaID      string
	At           time.Time
}

// Verdict is the outcome of evaluating an event
type Verdict string

// Verdicts
const (
	VerdictArmed         Verdict = "armed"
	VerdictNoRule        Verdict = "no_rule"
	VerdictNotTriggered  Verdict = "not_triggered"
	VerdictOutsideWindow Verdict = "outside_window"
	VerdictQuota         Verdict = "quota_exhausted"
	VerdictIgnored       Verdict = "ignored"
)

// Decision is what the engine concluded for one event
type Decision struct {
	Verdict Verdict
	// Rule is the governing rule; nil when none applies
	Rule   *Rule
	Reason string
	// Matched is the trigger term that fired, empty for contextual rules
	Matched string
	// Deactivate lists older duplicates that lost resolution
	Deactivate []string
	// Slot is the quota unit held for an armed, limited rule
	Slot QuotaSlot
}

// QuotaSlot is one unit of a rule's daily quota, taken when the rule was armed.
// The zero slot is held by nothing: the rule is unlimited or the decision is a preview
type QuotaSlot struct {
	RuleID string
	Day    time.Time
}

// Held reports whether a unit was taken and must be given back unless the reply is sent
func (s QuotaSlot) Held() bool { return s.RuleID != "" && !s.Day.IsZero() }

// Armed reports whether the event may be dispatched
func (d Decision) Armed() bool { return d.Verdict == VerdictArmed }

// Outcome is the final state of an event in the audit trail
type Outcome string

// Outcomes
const (
	OutcomeSent        Outcome = "sent"
	OutcomeFailed      Outcome = "failed"
	OutcomeDropped     Outcome = "dropped"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeRefused     Outcome = "refused"
	OutcomeIgnored     Outcome = "ignored"
)

// AuditEntry is one append-only record of what happened to an event
type AuditEntry struct {
	ID          string        `json:"id"`
	OccurredAt  time.Time     `json:"occurred_at"`
	WorkspaceID string        `json:"workspace_id"`
	AccountID   string        `json:"account_id"`
	RuleID      string        `json:"rule_id,omitempty"`
	EventKey    string        `json:"event_key"`
	EventClass  Class         `json:"event_class"`
	Outcome     Outcome       `json:"outcome"`
	Reason      string        `json:"reason,omitempty"`
	ReplyText   string        `json:"reply_text,omitempty"`
	Delay       time.Duration `json:"delay"`
}
