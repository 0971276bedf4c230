package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kiarash-bot/kiarash/internal/config"
	"github.com/kiarash-bot/kiarash/internal/logger"
)

// newBotAPI connects to the Bot API and verifies the token with getMe.
func newBotAPI(cfg config.TelegramConfig, log *logger.Logger) (*tgbotapi.BotAPI, error) {
	if err := tgbotapi.SetLogger(botLogger{log: log.WithModule("tgbotapi")}); err != nil {
		return nil, fmt.Errorf("set bot api logger: %w", err)
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	// getUpdates holds the connection open for the poll timeout.
	client := &http.Client{
		Timeout: time.Duration(config.TelegramPollTimeout)*time.Second + config.HTTPRead,
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", err)
	}
	return api, nil
}

// botLogger routes the library's log lines (poll retries, mostly) into the
// structured logger.
type botLogger struct {
	log *logger.Logger
}

func (l botLogger) Println(v ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
