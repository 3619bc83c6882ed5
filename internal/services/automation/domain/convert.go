package domain

import webhook "instapilot/internal/services/webhook/domain"

// FromWebhook maps an inbound webhook event onto the engine's event
func FromWebhook(ev webhook.Event) Event {
	class := ClassComment
	switch ev.Kind {
	case webhook.KindMessage:
		class = ClassDM
	case webhook.KindMention:
		class = ClassMention
	}
	return Event{
		Class:        class,
		Key:          ev.Key,
		Account:      ev.Owner,
		Text:         ev.Text,
		SenderID:     ev.SenderID,
		SenderHandle: ev.SenderHandle,
		CommentID:    ev.CommentID,
		MediaID:      ev.MediaID,
		At:           ev.At,
	}
}
