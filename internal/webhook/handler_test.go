package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiarash-bot/kiarash/internal/bot"
	"github.com/kiarash-bot/kiarash/internal/ctxutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testBotID = 4242

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

type fakeRouter struct {
	mu     sync.Mutex
	events []bot.Event
	reqIDs []string
	resp   bot.Response
}

func (f *fakeRouter) Handle(ctx context.Context, ev bot.Event) bot.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	id, _ := ctxutil.GetRequestID(ctx)
	f.reqIDs = append(f.reqIDs, id)
	return f.resp
}

func (f *fakeRouter) seen() []bot.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bot.Event(nil), f.events...)
}

var fixedNow = time.Date(2025, time.February, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, secret string, resp bot.Response) (*Handler, *fakeAPI, *fakeRouter) {
	t.Helper()
	api := &fakeAPI{}
	router := &fakeRouter{resp: resp}
	h := NewHandler(HandlerConfig{
		API:     api,
		Router:  router,
		BotID:   testBotID,
		Secret:  secret,
		SendRPS: 1000,
		Now:     func() time.Time { return fixedNow },
	})
	return h, api, router
}

func privateText(text string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: 7, FirstName: "Sara"},
		Chat:      &tgbotapi.Chat{ID: 7, Type: "private"},
		Text:      text,
	}}
}

func TestHandleWebhook(t *testing.T) {
	t.Parallel()
	menu := &bot.Keyboard{Kind: bot.KeyboardInline, Rows: [][]bot.Button{{{Label: "آب و هوا", Data: "weather"}}}}
	h, api, router := newTestHandler(t, "s3cret", bot.Response{Replies: []bot.Reply{{Text: "سلام", Keyboard: menu}}, Outcome: bot.OutcomeSuccess})

	engine := gin.New()
	engine.POST("/webhook", h.Handle)

	body := `{"update_id":5,"callback_query":{"id":"cb1","from":{"id":7,"is_bot":false,"first_name":"Sara"},` +
		`"message":{"message_id":3,"date":0,"chat":{"id":7,"type":"private"}},"data":"weather"}}`

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(SecretHeader, "s3cret")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, h.Shutdown(context.Background()))

	events := router.seen()
	require.Len(t, events, 1)
	assert.Equal(t, bot.Event{UserID: 7, ChatID: 7, ChatKind: bot.ChatDirect, CallbackToken: "weather", ReceivedAt: fixedNow}, events[0])
	assert.NotEmpty(t, router.reqIDs[0])

	require.Len(t, api.requests, 1)
	assert.Equal(t, tgbotapi.NewCallback("cb1", ""), api.requests[0])

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "سلام", msgs[0].Text)
	assert.Equal(t, tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("آب و هوا", "weather"),
	)), msgs[0].ReplyMarkup)
}

func TestHandleWebhookRejects(t *testing.T) {
	t.Parallel()
	h, api, router := newTestHandler(t, "s3cret", bot.Response{})
	engine := gin.New()
	engine.POST("/webhook", h.Handle)

	tests := []struct {
		name   string
		secret string
		body   string
		want   int
	}{
		{"missing secret", "", `{"update_id":1}`, http.StatusUnauthorized},
		{"wrong secret", "nope", `{"update_id":1}`, http.StatusUnauthorized},
		{"malformed body", "s3cret", `{"update_id":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(tt.body))
		if tt.secret != "" {
			req.Header.Set(SecretHeader, tt.secret)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Code, tt.name)
	}

	require.NoError(t, h.Shutdown(context.Background()))
	assert.Empty(t, router.seen())
	assert.Empty(t, api.messages())
}

func TestProcessUpdateThreadsGroupReplies(t *testing.T) {
	t.Parallel()
	h, api, router := newTestHandler(t, "", bot.Response{Replies: []bot.Reply{{Text: "a"}, {Text: "b"}}})

	upd := tgbotapi.Update{UpdateID: 2, Message: &tgbotapi.Message{
		MessageID:      99,
		From:           &tgbotapi.User{ID: 7},
		Chat:           &tgbotapi.Chat{ID: -100, Type: "supergroup"},
		Text:           "تهران",
		ReplyToMessage: &tgbotapi.Message{From: &tgbotapi.User{ID: testBotID, IsBot: true}},
	}}
	h.ProcessUpdate(context.Background(), upd)

	events := router.seen()
	require.Len(t, events, 1)
	assert.True(t, events[0].IsReplyToBot)
	assert.Equal(t, bot.ChatGroup, events[0].ChatKind)

	msgs := api.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, 99, msgs[0].ReplyToMessageID)
	assert.Zero(t, msgs[1].ReplyToMessageID)
	assert.Equal(t, int64(-100), msgs[1].ChatID)
}

func TestProcessUpdateStopsOnSendFailure(t *testing.T) {
	t.Parallel()
	h, api, _ := newTestHandler(t, "", bot.Response{Replies: []bot.Reply{{Text: "a"}, {Text: "b"}}})
	api.sendErr = &tgbotapi.Error{Code: http.StatusForbidden, Message: "Forbidden: bot was blocked by the user"}

	h.ProcessUpdate(context.Background(), privateText("سلام"))
	assert.Empty(t, api.messages())
}

func TestProcessUpdateIgnoresUnsupported(t *testing.T) {
	t.Parallel()
	h, api, router := newTestHandler(t, "", bot.Response{Replies: []bot.Reply{{Text: "x"}}})

	h.ProcessUpdate(context.Background(), tgbotapi.Update{UpdateID: 3, EditedMessage: &tgbotapi.Message{Text: "x"}})
	h.ProcessUpdate(context.Background(), privateText(""))

	assert.Empty(t, router.seen())
	assert.Empty(t, api.messages())
}

func TestPoll(t *testing.T) {
	t.Parallel()
	h, _, router := newTestHandler(t, "", bot.Response{})

	updates := make(chan tgbotapi.Update, 3)
	updates <- privateText("1")
	updates <- privateText("2")
	updates <- privateText("3")
	close(updates)

	h.Poll(context.Background(), updates)
	require.NoError(t, h.Shutdown(context.Background()))
	assert.Len(t, router.seen(), 3)
}

func TestEnqueueKeepsTracingPastCancel(t *testing.T) {
	t.Parallel()
	h, _, router := newTestHandler(t, "", bot.Response{})

	ctx, cancel := context.WithCancel(ctxutil.WithRequestID(context.Background(), "req-42"))
	cancel()
	h.Enqueue(ctx, privateText("سلام"))
	h.Enqueue(context.Background(), privateText("دوباره"))
	require.NoError(t, h.Shutdown(context.Background()))

	require.Len(t, router.seen(), 2, "a canceled caller does not drop the update")
	router.mu.Lock()
	defer router.mu.Unlock()
	assert.Contains(t, router.reqIDs, "req-42")
	for _, id := range router.reqIDs {
		assert.NotEmpty(t, id)
	}
}

func TestPollStopsOnCancel(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t, "", bot.Response{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		h.Poll(ctx, make(chan tgbotapi.Update))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll did not return after cancel")
	}
}

func TestTyping(t *testing.T) {
	t.Parallel()
	h, api, _ := newTestHandler(t, "", bot.Response{})
	h.Typing(context.Background(), 7)
	require.Len(t, api.requests, 1)
	assert.Equal(t, tgbotapi.NewChatAction(7, tgbotapi.ChatTyping), api.requests[0])
}
