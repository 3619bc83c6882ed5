package service

import (
	"context"

	accounts "instapilot/internal/services/accounts/domain"
)

// CandidateOwners resolves owners through the accounts store
type CandidateOwners struct {
	Accounts accounts.Repo
}

// Owner returns the account a delivery for platformID belongs to
func (o CandidateOwners) Owner(ctx context.Context, platformID string) (accounts.Account, bool, error) {
	list, err := o.Accounts.Candidates(ctx, platformID)
	if err != nil {
		return accounts.Account{}, false, err
	}
	if len(list) == 0 {
		return accounts.Account{}, false, nil
	}
	return pickOwner(list), true, nil
}

// pickOwner prefers the connection with the most active rules, then the newest connection
func pickOwner(list []accounts.Candidate) accounts.Account {
	best := list[0]
	for _, c := range list[1:] {
		switch {
		case c.ActiveRules > best.ActiveRules:
			best = c
		case c.ActiveRules < best.ActiveRules:
		case c.ConnectedAt.After(best.ConnectedAt):
			best = c
		case c.ConnectedAt.Equal(best.ConnectedAt) && c.ID < best.ID:
			best = c
		}
	}
	return best.Account
}
