// Package webhook is the Telegram Bot API transport. It receives updates by
// webhook or long polling, hands them to the router and delivers the replies.
package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kiarash-bot/kiarash/internal/bot"
	"github.com/kiarash-bot/kiarash/internal/config"
	"github.com/kiarash-bot/kiarash/internal/ctxutil"
	"github.com/kiarash-bot/kiarash/internal/logger"
	"github.com/kiarash-bot/kiarash/internal/metrics"
	"github.com/kiarash-bot/kiarash/internal/ratelimit"
	"github.com/kiarash-bot/kiarash/internal/sentry"
)

// SecretHeader carries the secret token Telegram echoes on every webhook call.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// API is the part of *tgbotapi.BotAPI the handler uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router turns an event into replies.
type Router interface {
	Handle(ctx context.Context, ev bot.Event) bot.Response
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	API    API
	Router Router
	// BotID identifies replies to the bot and text_mention entities.
	BotID int64
	// Secret, when set, must match SecretHeader on webhook calls.
	Secret string
	// SendRPS paces outbound messages across all chats.
	SendRPS float64
	// Timeout bounds routing and delivery of one update.
	Timeout       time.Duration
	MaxConcurrent int64

	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Handler handles Telegram updates
type Handler struct {
	api     API
	router  Router
	botID   int64
	secret  string
	timeout time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	sendLimiter *ratelimit.Limiter  // global pacing of sendMessage calls
	sem         *semaphore.Weighted // bounds updates in flight
	wg          sync.WaitGroup      // async update processing
}

// NewHandler creates a new update handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.SendRPS <= 0 {
		cfg.SendRPS = 25
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.EventProcessing + config.SendBudget
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = config.MaxConcurrentUpdates
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New("error")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Handler{
		api:         cfg.API,
		router:      cfg.Router,
		botID:       cfg.BotID,
		secret:      cfg.Secret,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger.WithModule("webhook"),
		metrics:     cfg.Metrics,
		now:         cfg.Now,
		sendLimiter: ratelimit.New(cfg.SendRPS, cfg.SendRPS),
		sem:         semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// Handle is the Gin handler for the webhook endpoint
func (h *Handler) Handle(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("Webhook call with invalid secret token")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	}

	var upd tgbotapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.logger.WithError(err).Warn("Failed to parse webhook update")
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	// Answer right away; Telegram redelivers slow calls.
	c.Status(http.StatusOK)
	h.Enqueue(c.Request.Context(), upd)
}

// Poll feeds updates from a long-polling channel until ctx is done or the
// channel is closed.
func (h *Handler) Poll(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.Enqueue(ctx, upd)
		}
	}
}

// Enqueue processes upd in the background. The work keeps ctx's tracing
// values but not its cancellation, so it outlives the webhook response.
func (h *Handler) Enqueue(ctx context.Context, upd tgbotapi.Update) {
	ctx = ctxutil.PreserveTracing(ctx)
	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.WithField("panic", r).WithField("update_id", upd.UpdateID).Error("Panic in async update processing")
			}
		}()

		if err := h.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer h.sem.Release(1)
		h.ProcessUpdate(ctx, upd)
	})
}

// ProcessUpdate routes one update and delivers the replies.
func (h *Handler) ProcessUpdate(ctx context.Context, upd tgbotapi.Update) {
	in, ok := toEvent(upd, h.botID, h.now())
	if !ok {
		h.logger.WithField("update_id", upd.UpdateID).Debug("Unsupported update type")
		return
	}

	if _, ok := ctxutil.GetRequestID(ctx); !ok {
		ctx = ctxutil.WithRequestID(ctx, uuid.NewString())
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	log := h.logger.WithField("update_id", upd.UpdateID)
	if in.callbackID != "" {
		// Stops the button's loading spinner.
		if _, err := h.api.Request(tgbotapi.NewCallback(in.callbackID, "")); err != nil {
			log.WithError(err).DebugContext(ctx, "Failed to answer callback query")
		}
	}

	start := time.Now()
	resp := h.router.Handle(ctx, in.event)
	sent := h.deliver(ctx, in, resp)

	log.WithField("outcome", string(resp.Outcome)).
		WithField("replies", len(resp.Replies)).
		WithField("sent", sent).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		InfoContext(ctx, "Update processed")
}

// deliver sends the replies in order and returns how many messages went out.
// Delivery stops at the first failure so later parts never arrive out of order.
func (h *Handler) deliver(ctx context.Context, in inbound, resp bot.Response) int {
	sent := 0
	replyTo := in.replyTo
	for _, r := range resp.Replies {
		for _, msg := range messages(in.event.ChatID, r, replyTo) {
			if err := h.send(ctx, msg); err != nil {
				h.sendFailed(ctx, err)
				return sent
			}
			sent++
		}
		replyTo = 0
	}
	return sent
}

func (h *Handler) send(ctx context.Context, msg tgbotapi.Chattable) error {
	waitStart := time.Now()
	if err := h.sendLimiter.Wait(ctx); err != nil {
		if h.metrics != nil {
			h.metrics.RecordRateLimiterDrop("send")
		}
		return fmt.Errorf("wait for send slot: %w", err)
	}
	if h.metrics != nil {
		h.metrics.RecordRateLimiterWait("send", time.Since(waitStart).Seconds())
	}

	if _, err := h.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (h *Handler) sendFailed(ctx context.Context, err error) {
	if h.metrics != nil {
		h.metrics.RecordHTTPError("send", "telegram")
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
		// The user blocked the bot or left the chat.
		h.logger.WithError(err).DebugContext(ctx, "Chat unreachable")
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		h.logger.WithError(err).WarnContext(ctx, "Reply not sent before deadline")
		return
	}
	h.logger.WithError(err).ErrorContext(ctx, "Failed to send reply")
	sentry.CaptureError(ctx, "webhook", err)
}

// Typing shows the "typing…" chat action in chatID.
func (h *Handler) Typing(ctx context.Context, chatID int64) {
	if _, err := h.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		h.logger.WithError(err).DebugContext(ctx, "Failed to send chat action")
	}
}

// Shutdown waits for all async update processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		h.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
