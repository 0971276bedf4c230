package webhook

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kiarash-bot/kiarash/internal/bot"
)

// inbound is a converted update plus what the transport needs to answer it.
type inbound struct {
	event bot.Event
	// callbackID is set for button presses; the query must be answered.
	callbackID string
	// replyTo is the message a group reply is threaded under.
	replyTo int
}

// toEvent converts an update into a router event. Updates the router has no
// use for (edits, channel posts, stickers) report ok == false.
func toEvent(upd tgbotapi.Update, botID int64, now time.Time) (inbound, bool) {
	switch {
	case upd.CallbackQuery != nil:
		q := upd.CallbackQuery
		if q.From == nil || q.Message == nil || q.Message.Chat == nil {
			return inbound{}, false
		}
		return inbound{
			event: bot.Event{
				UserID:        q.From.ID,
				ChatID:        q.Message.Chat.ID,
				ChatKind:      chatKind(q.Message.Chat),
				CallbackToken: q.Data,
				ReceivedAt:    now,
			},
			callbackID: q.ID,
		}, true

	case upd.Message != nil:
		m := upd.Message
		if m.From == nil || m.Chat == nil {
			return inbound{}, false
		}
		ev := bot.Event{
			UserID:     m.From.ID,
			ChatID:     m.Chat.ID,
			ChatKind:   chatKind(m.Chat),
			ReceivedAt: now,
		}
		in := inbound{event: ev}

		if len(m.NewChatMembers) > 0 {
			for _, u := range m.NewChatMembers {
				in.event.NewMembers = append(in.event.NewMembers, bot.Member{FirstName: u.FirstName, IsBot: u.IsBot})
			}
			return in, true
		}
		if m.Text == "" {
			return inbound{}, false
		}

		in.event.Text = m.Text
		in.event.IsReplyToBot = m.ReplyToMessage != nil && m.ReplyToMessage.From != nil && m.ReplyToMessage.From.ID == botID
		in.event.MentionsBot = mentionsUser(m.Entities, botID)
		if in.event.IsGroup() {
			in.replyTo = m.MessageID
		}
		return in, true
	}
	return inbound{}, false
}

func chatKind(c *tgbotapi.Chat) bot.ChatKind {
	if c.IsGroup() || c.IsSuperGroup() {
		return bot.ChatGroup
	}
	return bot.ChatDirect
}

// mentionsUser reports a text_mention entity pointing at userID. Plain
// @username mentions are matched on the text by the router.
func mentionsUser(entities []tgbotapi.MessageEntity, userID int64) bool {
	for _, e := range entities {
		if e.Type == "text_mention" && e.User != nil && e.User.ID == userID {
			return true
		}
	}
	return false
}
