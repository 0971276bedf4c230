package webhook

import (
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kiarash-bot/kiarash/internal/bot"
)

// maxMessageRunes keeps a message under Telegram's 4096 UTF-16 unit limit
// with room for emoji, which take two units.
const maxMessageRunes = 4000

// messages builds the sendMessage requests for one reply. Long texts are
// split; the keyboard goes on the last part and the thread reference on the first.
func messages(chatID int64, r bot.Reply, replyTo int) []tgbotapi.MessageConfig {
	parts := splitText(r.Text, maxMessageRunes)
	out := make([]tgbotapi.MessageConfig, 0, len(parts))
	for i, p := range parts {
		msg := tgbotapi.NewMessage(chatID, p)
		if i == 0 && replyTo != 0 {
			msg.ReplyToMessageID = replyTo
			msg.AllowSendingWithoutReply = true
		}
		if i == len(parts)-1 && r.Keyboard != nil {
			msg.ReplyMarkup = markup(r.Keyboard)
		}
		out = append(out, msg)
	}
	return out
}

// markup converts a router keyboard into Bot API reply markup.
func markup(kb *bot.Keyboard) any {
	if kb.Kind == bot.KeyboardReply {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
		for _, row := range kb.Rows {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(b.Label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		return tgbotapi.NewReplyKeyboard(rows...)
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// splitText cuts s into parts of at most limit runes, preferring line breaks.
func splitText(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}

	var parts []string
	runes := []rune(s)
	for len(runes) > limit {
		cut := limit
		if nl := lastIndexRune(runes[:limit], '\n'); nl > limit/2 {
			cut = nl + 1
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func lastIndexRune(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
