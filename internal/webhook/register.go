package webhook

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kiarash-bot/kiarash/internal/config"
)

// allowedUpdates are the update kinds the router handles.
var allowedUpdates = []string{"message", "callback_query"}

// Registrar is the part of *tgbotapi.BotAPI used to manage the webhook.
type Registrar interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// RegisterWebhook points Telegram at url. A non-empty secret is echoed back
// in SecretHeader on every delivery.
func RegisterWebhook(api Registrar, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", allowedUpdates); err != nil {
		return fmt.Errorf("encode allowed updates: %w", err)
	}

	resp, err := api.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("set webhook: %s", resp.Description)
	}
	return nil
}

// DeleteWebhook switches the bot back to getUpdates. Pending updates are kept.
func DeleteWebhook(api Registrar) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// PollConfig is the getUpdates configuration used for long polling.
func PollConfig() tgbotapi.UpdateConfig {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = config.TelegramPollTimeout
	u.AllowedUpdates = allowedUpdates
	return u
}
