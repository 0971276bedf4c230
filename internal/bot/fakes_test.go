package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/kiarash-bot/kiarash/internal/errors"
	"github.com/kiarash-bot/kiarash/internal/jalali"
	"github.com/kiarash-bot/kiarash/internal/price"
	"github.com/kiarash-bot/kiarash/internal/ratelimit"
	"github.com/kiarash-bot/kiarash/internal/session"
	"github.com/kiarash-bot/kiarash/internal/weather"
)

// clock is 2025-02-01 12:00 UTC, Jalali 1403/11/13.
var clock = time.Date(2025, time.February, 1, 12, 0, 0, 0, time.UTC)

type forecastCall struct {
	City string
	Date jalali.GregorianDate
}

type fakeWeather struct {
	mu            sync.Mutex
	currentCalls  []string
	forecastCalls []forecastCall

	currentErr  error
	forecastErr error
	// block, when set, is waited on by Current after started is signalled.
	started chan struct{}
	block   chan struct{}
	panics  bool
}

func (f *fakeWeather) Current(ctx context.Context, city string) (*weather.Current, error) {
	f.mu.Lock()
	f.currentCalls = append(f.currentCalls, city)
	err, block, started, panics := f.currentErr, f.block, f.started, f.panics
	f.mu.Unlock()

	if panics {
		panic("weather exploded")
	}
	if started != nil {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &weather.Current{Location: city, Condition: "آفتابی", TempC: 21.5, Humidity: 30, LastUpdated: "2025-02-01 12:00"}, nil
}

func (f *fakeWeather) Forecast(_ context.Context, city string, date jalali.GregorianDate) (*weather.ForecastDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecastCalls = append(f.forecastCalls, forecastCall{City: city, Date: date})
	if f.forecastErr != nil {
		return nil, f.forecastErr
	}
	return &weather.ForecastDay{Location: city, Date: date.String(), Condition: "ابری", MinTempC: 3, MaxTempC: 14}, nil
}

func (f *fakeWeather) currents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.currentCalls...)
}

func (f *fakeWeather) forecasts() []forecastCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]forecastCall(nil), f.forecastCalls...)
}

type fakePrices struct {
	err   error
	lines []price.Line
}

func (f *fakePrices) get(context.Context) ([]price.Line, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

func (f *fakePrices) Gold(ctx context.Context) ([]price.Line, error)     { return f.get(ctx) }
func (f *fakePrices) Currency(ctx context.Context) ([]price.Line, error) { return f.get(ctx) }
func (f *fakePrices) Crypto(ctx context.Context) ([]price.Line, error)   { return f.get(ctx) }

type fakeAI struct {
	mu     sync.Mutex
	calls  []string
	resets []int64
	err    error
}

func (f *fakeAI) Reset(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, userID)
}

func (f *fakeAI) resetUsers() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.resets...)
}

func (f *fakeAI) Chat(_ context.Context, userID int64, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("پاسخ %d: %s", userID, text), nil
}

type fakeQuota struct {
	allow bool
}

func (f *fakeQuota) Allow(int64) bool         { return f.allow }
func (f *fakeQuota) DailyRemaining(int64) int { return 0 }

type harness struct {
	router  *Router
	weather *fakeWeather
	prices  *fakePrices
	ai      *fakeAI
	flood   *ratelimit.FloodGuard
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		weather: &fakeWeather{},
		prices:  &fakePrices{lines: []price.Line{{Label: "سکه امامی", Price: "85,000,000 تومان", Change: "➖ بدون تغییر", Time: "12:00"}}},
		ai:      &fakeAI{},
		flood:   ratelimit.NewFloodGuard(ratelimit.FloodConfig{}),
	}
	cfg := Config{
		Weather:     h.weather,
		Prices:      h.prices,
		AI:          h.ai,
		Flood:       h.flood,
		BotUsername: "KiarashBot",
		Now:         func() time.Time { return clock },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	h.router = NewRouter(cfg)
	return h
}

func (h *harness) press(uid int64, token string) Response {
	return h.router.Handle(context.Background(), Event{UserID: uid, ChatID: uid, CallbackToken: token, ReceivedAt: clock})
}

func (h *harness) say(uid int64, text string) Response {
	return h.router.Handle(context.Background(), Event{UserID: uid, ChatID: uid, Text: text, ReceivedAt: clock})
}

func (h *harness) mode(uid int64) session.Mode {
	return h.router.Sessions().Get(uid).Mode
}

func lastText(resp Response) string {
	if len(resp.Replies) == 0 {
		return ""
	}
	return resp.Replies[len(resp.Replies)-1].Text
}

// tokens flattens the callback data of every keyboard in resp.
func tokens(resp Response) []string {
	var out []string
	for _, r := range resp.Replies {
		if r.Keyboard == nil {
			continue
		}
		for _, row := range r.Keyboard.Rows {
			for _, b := range row {
				out = append(out, b.Data)
			}
		}
	}
	return out
}

var errBoom = apperrors.NewUpstreamError("fake", 503, fmt.Errorf("boom"))
