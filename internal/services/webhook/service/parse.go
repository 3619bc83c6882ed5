package service

import (
	"encoding/json"
	"strconv"
	"time"

	"instapilot/internal/core/dedup"
	perr "instapilot/internal/platform/errors"
	"instapilot/internal/services/webhook/domain"
)

// envelope keeps entries raw so one bad entry cannot spoil its siblings
type envelope struct {
	Object string            `json:"object"`
	Entry  []json.RawMessage `json:"entry"`
}

// change fields that carry comment text
var commentFields = map[string]bool{"comments": true, "live_comments": true}

func parseEnvelope(body []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, perr.Wrap(err, perr.ErrorCodeJSON, "webhook: malformed delivery")
	}
	return env, nil
}

func parseEntry(raw json.RawMessage) (domain.Entry, error) {
	var e domain.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.Entry{}, perr.Wrap(err, perr.ErrorCodeJSON, "webhook: malformed entry")
	}
	if e.ID == "" {
		return domain.Entry{}, perr.JSONErrf("webhook: entry without id")
	}
	return e, nil
}

// item is a parsed event or the reason it was dropped
type item struct {
	ev     domain.Event
	skip   string
	broken error
}

// eventsOf expands one entry into unowned events, in delivery order
func eventsOf(e domain.Entry) []item {
	out := make([]item, 0, len(e.Changes)+len(e.Messaging))
	at := time.Unix(e.Time, 0).UTC()
	if e.Time > 1e12 {
		at = time.UnixMilli(e.Time).UTC()
	}

	for _, c := range e.Changes {
		out = append(out, fromChange(c, at))
	}
	for _, m := range e.Messaging {
		out = append(out, fromMessaging(m))
	}
	return out
}

func fromChange(c domain.Change, at time.Time) item {
	v := c.Value
	switch {
	case commentFields[c.Field]:
		if v.ID == "" {
			return item{broken: perr.JSONErrf("webhook: %s change without comment id", c.Field)}
		}
		ev := domain.Event{
			Kind:      domain.KindComment,
			Key:       dedup.CommentKey(v.ID),
			Field:     c.Field,
			CommentID: v.ID,
			Text:      v.Text,
			At:        at,
		}
		if v.From != nil {
			ev.SenderID, ev.SenderHandle = v.From.ID, v.From.Username
		}
		if v.Media != nil {
			ev.MediaID = v.Media.ID
		}
		return item{ev: ev}

	case c.Field == "mentions":
		if v.CommentID == "" && v.MediaID == "" {
			return item{broken: perr.JSONErrf("webhook: mention without comment or media id")}
		}
		return item{ev: domain.Event{
			Kind:      domain.KindMention,
			Key:       dedup.MentionKey(v.CommentID, v.MediaID),
			Field:     c.Field,
			CommentID: v.CommentID,
			MediaID:   v.MediaID,
			Text:      v.Text,
			At:        at,
		}}
	}
	return item{skip: "field " + c.Field}
}

func fromMessaging(m domain.Messaging) item {
	switch {
	case m.Message == nil:
		return item{skip: "no message"}
	case m.Message.IsEcho:
		return item{skip: "echo"}
	case m.Sender.ID == "" || m.Timestamp == 0:
		return item{broken: perr.JSONErrf("webhook: message without sender or timestamp")}
	}
	return item{ev: domain.Event{
		Kind:     domain.KindMessage,
		Key:      dedup.MessageKey(m.Sender.ID, strconv.FormatInt(m.Timestamp, 10), m.Message.Text),
		SenderID: m.Sender.ID,
		Text:     m.Message.Text,
		At:       time.UnixMilli(m.Timestamp).UTC(),
	}}
}
