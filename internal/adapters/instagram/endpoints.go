package instagram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	perr "instapilot/internal/platform/errors"
)

const mediaFields = "id,like_count,comments_count"

// FetchMetrics performs GET /{account} with the recent media edge expanded,
// so one poll costs a single request
func (c *Client) FetchMetrics(ctx context.Context, accountID, token string) (Account, error) {
	q := url.Values{}
	q.Set("fields", fmt.Sprintf(
		"id,username,account_type,followers_count,media_count,media.limit(%d){%s}",
		c.opts.MediaLimit, mediaFields,
	))
	var out Account
	if err := c.call(ctx, http.MethodGet, "/"+url.PathEscape(accountID), token, q, nil, &out); err != nil {
		return Account{}, err
	}
	return out, nil
}

// RecentMedia performs GET /{account}/media
func (c *Client) RecentMedia(ctx context.Context, accountID, token string, limit int) ([]Media, error) {
	if limit <= 0 {
		limit = c.opts.MediaLimit
	}
	q := url.Values{}
	q.Set("fields", mediaFields)
	q.Set("limit", strconv.Itoa(limit))
	var out mediaPage
	if err := c.call(ctx, http.MethodGet, "/"+url.PathEscape(accountID)+"/media", token, q, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ReplyToComment performs POST /{comment}/replies and returns the new comment id
func (c *Client) ReplyToComment(ctx context.Context, token, commentID, text string) (string, error) {
	if commentID == "" {
		return "", perr.InvalidArgf("instagram reply: empty comment id")
	}
	var out idResponse
	path := "/" + url.PathEscape(commentID) + "/replies"
	if err := c.call(ctx, http.MethodPost, path, token, nil, replyBody{Message: text}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// SendMessage performs POST /{account}/messages and returns the message id
func (c *Client) SendMessage(ctx context.Context, token, accountID string, to Recipient, text string) (string, error) {
	if to.ID == "" && to.CommentID == "" {
		return "", perr.InvalidArgf("instagram message: empty recipient")
	}
	var out idResponse
	path := "/" + url.PathEscape(accountID) + "/messages"
	body := sendMessageBody{Recipient: to, Message: messageText{Text: text}}
	if err := c.call(ctx, http.MethodPost, path, token, nil, body, &out); err != nil {
		return "", err
	}
	if out.MessageID != "" {
		return out.MessageID, nil
	}
	return out.ID, nil
}
