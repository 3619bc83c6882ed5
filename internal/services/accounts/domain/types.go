// Package domain holds connected Instagram account types and the account store port
package domain

import (
	"context"
	"time"
)

// Account is one connected Instagram professional account
type Account struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	IGUserID    string    `json:"ig_user_id"`
	PageID      string    `json:"page_id,omitempty"`
	Username    string    `json:"username"`
	AccessToken string    `json:"-"`
	TimeZone    string    `json:"time_zone"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Location resolves the account's IANA zone, UTC when unset or unknown
func (a Account) Location() *time.Location {
	if a.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Candidate is an account that claims a platform id, with its active rule count
type Candidate struct {
	Account
	ActiveRules int
}

// Repo reads connected accounts
type Repo interface {
	ListConnected(ctx context.Context) ([]Account, error)
	ByID(ctx context.Context, id string) (Account, error)
	// Candidates returns every connected account whose IG user id or page id equals platformID
	Candidates(ctx context.Context, platformID string) ([]Candidate, error)
}
