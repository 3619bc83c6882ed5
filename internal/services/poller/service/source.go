package service

import (
	"context"
	"math"

	"instapilot/internal/adapters/instagram"
	"instapilot/internal/core/ratebudget"
	"instapilot/internal/platform/logger"
	"instapilot/internal/services/poller/domain"
)

// GraphSource reads account counters from the Graph API. Client should send
// each request once; every call it makes is paid for from Budget
type GraphSource struct {
	Client *instagram.Client
	// Budget pays for the media edge fallback; nil skips the fallback
	Budget *ratebudget.Budget
}

var _ domain.MetricsSource = GraphSource{}

// Fetch reads counters and recent media in one request. When the expanded
// field is missing the media edge is read only if the budget covers a second
// call; otherwise the target's previous fingerprint is kept
func (g GraphSource) Fetch(ctx context.Context, t domain.Target) (domain.Snapshot, error) {
	acct, err := g.Client.FetchMetrics(ctx, t.IGUserID, t.Token)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap := domain.Snapshot{
		FollowerCount: acct.FollowersCount,
		MediaCount:    acct.MediaCount,
		Engagement:    t.Engagement,
	}
	if media, ok := acct.RecentMedia(); ok {
		snap.Engagement = Fingerprint(media)
		return snap, nil
	}

	if g.Budget == nil {
		return snap, nil
	}
	if dec := g.Budget.AcquireFollowUp(t.AccountID); dec != ratebudget.Allowed {
		logger.Named("poller").Debug().Str("account_id", t.AccountID).Str("gate", dec.String()).Msg("media edge skipped; keeping fingerprint")
		return snap, nil
	}
	media, err := g.Client.RecentMedia(ctx, t.IGUserID, t.Token, 0)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Engagement = Fingerprint(media)
	return snap, nil
}

// Fingerprint averages likes and comments over media, rounded to whole numbers
func Fingerprint(media []instagram.Media) domain.Engagement {
	if len(media) == 0 {
		return domain.Engagement{}
	}
	var likes, comments int64
	for _, m := range media {
		likes += m.LikeCount
		comments += m.CommentsCount
	}
	n := float64(len(media))
	return domain.Engagement{
		AvgLikes:    int64(math.Round(float64(likes) / n)),
		AvgComments: int64(math.Round(float64(comments) / n)),
	}
}
