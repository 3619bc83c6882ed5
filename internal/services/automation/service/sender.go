package service

import (
	"context"

	"instapilot/internal/adapters/instagram"
	"instapilot/internal/services/automation/domain"
)

// GraphSender sends replies through the Graph API with the owning account's token
type GraphSender struct {
	Client *instagram.Client
}

var _ domain.Sender = GraphSender{}

// Send routes a reply: public comment reply, private reply to a comment, or direct message
func (s GraphSender) Send(ctx context.Context, ev domain.Event, rule domain.Rule, text string) (string, error) {
	acct := ev.Account
	switch {
	case ev.Class == domain.ClassComment && rule.Type == domain.RuleComment:
		return s.Client.ReplyToComment(ctx, acct.AccessToken, ev.CommentID, text)
	case ev.Class == domain.ClassComment:
		return s.Client.SendMessage(ctx, acct.AccessToken, acct.IGUserID, instagram.Recipient{CommentID: ev.CommentID}, text)
	default:
		return s.Client.SendMessage(ctx, acct.AccessToken, acct.IGUserID, instagram.Recipient{ID: ev.SenderID}, text)
	}
}
