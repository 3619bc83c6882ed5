// Package domain defines polling state, change events and the poller ports
package domain

import "time"

// Tier names a polling cadence
type Tier string

// Tiers from fastest to slowest
const (
	TierActive  Tier = "active"
	TierDefault Tier = "default"
	TierReduced Tier = "reduced"
	TierMinimal Tier = "minimal"
	TierNight   Tier = "night"
)

// Engagement is the rounded average likes and comments over recent posts
type Engagement struct {
	AvgLikes    int64 `json:"avg_likes"`
	AvgComments int64 `json:"avg_comments"`
}

// Snapshot is one observation of an account's public counters
type Snapshot struct {
	FollowerCount int64      `json:"follower_count"`
	MediaCount    int64      `json:"media_count"`
	Engagement    Engagement `json:"engagement"`
}

// PollState is the per-account polling memory
type PollState struct {
	AccountID   string `json:"account_id"`
	WorkspaceID string `json:"workspace_id"`
	IGUserID    string `json:"ig_user_id"`
	Username    string `json:"username"`
	Token       string `json:"-"`

	Location *time.Location `json:"-"`

	HasSnapshot         bool       `json:"has_snapshot"`
	LastFollowerCount   int64      `json:"last_follower_count"`
	LastMediaCount      int64      `json:"last_media_count"`
	LastEngagement      Engagement `json:"last_engagement"`
	ConsecutiveNoChange int        `json:"consecutive_no_change"`

	LastActivityAt time.Time `json:"last_activity_at"`
	LastPolledAt   time.Time `json:"last_polled_at"`
	Tier           Tier      `json:"tier"`
	NextPollAt     time.Time `json:"next_poll_at"`
}

// Snapshot returns the last observed counters
func (s PollState) Snapshot() Snapshot {
	return Snapshot{
		FollowerCount: s.LastFollowerCount,
		MediaCount:    s.LastMediaCount,
		Engagement:    s.LastEngagement,
	}
}

// Differs reports whether snap changes any tracked counter
func (s PollState) Differs(snap Snapshot) bool {
	return !s.HasSnapshot ||
		s.LastFollowerCount != snap.FollowerCount ||
		s.LastMediaCount != snap.MediaCount ||
		s.LastEngagement != snap.Engagement
}

// Record stores snap as the latest observation
func (s *PollState) Record(snap Snapshot) {
	s.HasSnapshot = true
	s.LastFollowerCount = snap.FollowerCount
	s.LastMediaCount = snap.MediaCount
	s.LastEngagement = snap.Engagement
}

// ChangeEvent is published when a poll observes different counters
type ChangeEvent struct {
	AccountID   string    `json:"account_id"`
	WorkspaceID string    `json:"workspace_id"`
	Previous    Snapshot  `json:"previous"`
	Current     Snapshot  `json:"current"`
	At          time.Time `json:"at"`
}

// Target identifies what to fetch and with which credential
type Target struct {
	AccountID string
	IGUserID  string
	Token     string
	// Engagement is the last recorded fingerprint, reused when recent media cannot be read
	Engagement Engagement
}
