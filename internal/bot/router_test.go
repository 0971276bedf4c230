package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kiarash-bot/kiarash/internal/errors"
	"github.com/kiarash-bot/kiarash/internal/jalali"
	"github.com/kiarash-bot/kiarash/internal/session"
	"github.com/kiarash-bot/kiarash/internal/weather"
)

func TestForecastFlowEndToEnd(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	resp := h.press(1, TokenForecast)
	require.Equal(t, OutcomeSuccess, resp.Outcome)
	assert.Equal(t, session.WeatherForecast, h.mode(1))
	assert.Contains(t, tokens(resp), CityToken("شیراز"))

	resp = h.say(1, "Shiraz")
	sess := h.router.Sessions().Get(1)
	assert.Equal(t, session.WeatherForecast, sess.Mode)
	assert.Equal(t, "Shiraz", sess.PendingCity)
	require.Contains(t, tokens(resp), DateToken("2025-02-06"), "date picker offers the coming days")
	assert.Empty(t, h.weather.forecasts())

	resp = h.press(1, DateToken("2025-02-06"))
	assert.Equal(t, OutcomeSuccess, resp.Outcome)
	assert.Equal(t, []forecastCall{{City: "Shiraz", Date: jalali.GregorianDate{Year: 2025, Month: 2, Day: 6}}}, h.weather.forecasts())
	assert.Equal(t, session.None, h.mode(1))
	assert.Contains(t, lastText(resp), "Shiraz")
	assert.Contains(t, lastText(resp), "۱۴۰۳/۱۱/۱۸")
}

func TestButtonAndLabelDriveSameTransition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		token, label string
		want         session.Mode
	}{
		{TokenWeather, LabelWeather, session.WeatherMenu},
		{TokenAI, LabelAI, session.AI},
		{TokenPrices, LabelPrices, session.None},
		{TokenBack, LabelBack, session.None},
		{TokenCurrent, "📍 دمای فعلی", session.WeatherCurrent},
		{TokenForecast, "📅 پیش‌بینی", session.WeatherForecast},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			byButton := h.press(1, tt.token)
			byLabel := h.say(2, tt.label)

			assert.Equal(t, byButton, byLabel)
			assert.Equal(t, tt.want, h.mode(1))
			assert.Equal(t, tt.want, h.mode(2))
		})
	}
}

func TestStartShowsMenus(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.press(1, TokenAI)

	resp := h.say(1, "/start")
	require.Len(t, resp.Replies, 2)
	assert.Equal(t, KeyboardInline, resp.Replies[0].Keyboard.Kind)
	assert.Equal(t, KeyboardReply, resp.Replies[1].Keyboard.Kind)
	assert.Equal(t, session.None, h.mode(1))
}

func TestCurrentWeather(t *testing.T) {
	t.Parallel()

	t.Run("city by text", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenCurrent)
		resp := h.say(1, "تهران")
		assert.Equal(t, []string{"تهران"}, h.weather.currents())
		assert.Contains(t, lastText(resp), "🌤 وضعیت آب و هوای تهران")
		assert.Equal(t, session.None, h.mode(1))
	})

	t.Run("city by button", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenCurrent)
		h.press(1, CityToken("شیراز"))
		assert.Equal(t, []string{"شیراز"}, h.weather.currents())
		assert.Equal(t, session.None, h.mode(1))
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.weather.currentErr = fmt.Errorf("%w: no such city", apperrors.ErrNotFound)
		h.press(1, TokenCurrent)
		resp := h.say(1, "Atlantis")
		assert.Equal(t, OutcomeNotFound, resp.Outcome)
		assert.Equal(t, msgCityNotFound, lastText(resp))
		assert.Equal(t, session.None, h.mode(1))
	})

	t.Run("upstream failure reverts to none", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.weather.currentErr = errBoom
		h.press(1, TokenCurrent)
		resp := h.say(1, "تهران")
		assert.Equal(t, OutcomeError, resp.Outcome)
		assert.Equal(t, msgWeatherFailed, lastText(resp))
		assert.Equal(t, session.None, h.mode(1))
	})
}

func TestForecastFreeText(t *testing.T) {
	t.Parallel()
	feb6 := jalali.GregorianDate{Year: 2025, Month: 2, Day: 6}

	t.Run("full request", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenForecast)
		h.say(1, "Shiraz ۱۸ بهمن")
		assert.Equal(t, []forecastCall{{City: "Shiraz", Date: feb6}}, h.weather.forecasts())
		assert.Equal(t, session.None, h.mode(1))
	})

	t.Run("multi-word city", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenForecast)
		h.say(1, "بندر عباس 18 بهمن")
		assert.Equal(t, []forecastCall{{City: "بندر عباس", Date: feb6}}, h.weather.forecasts())
	})

	t.Run("date after pending city", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenForecast)
		h.press(1, CityToken("Shiraz"))
		h.say(1, "18 بهمن")
		assert.Equal(t, []forecastCall{{City: "Shiraz", Date: feb6}}, h.weather.forecasts())
	})

	t.Run("unparseable text becomes pending city", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenForecast)
		resp := h.say(1, "Shiraz 18 Nowhere")
		sess := h.router.Sessions().Get(1)
		assert.Equal(t, session.WeatherForecast, sess.Mode)
		assert.Equal(t, "Shiraz 18 Nowhere", sess.PendingCity)
		assert.Contains(t, tokens(resp), DateToken("2025-02-01"))
		assert.Empty(t, h.weather.forecasts())
	})

	t.Run("date outside horizon", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.weather.forecastErr = fmt.Errorf("%w: 2025-03-01", weather.ErrDateUnavailable)
		h.press(1, TokenForecast)
		resp := h.say(1, "Shiraz 11 اسفند")
		assert.Equal(t, msgDateUnavailable, lastText(resp))
		assert.Equal(t, session.None, h.mode(1))
	})
}

func TestDateWithoutPendingCity(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.press(1, TokenForecast)

	resp := h.press(1, DateToken("2025-02-06"))
	assert.Equal(t, session.WeatherForecast, h.mode(1))
	assert.Equal(t, msgPickCityDate, lastText(resp))
	assert.Empty(t, h.weather.forecasts())
}

func TestStaleButtons(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		setup string
		token string
	}{
		{"city in none", "", CityToken("شیراز")},
		{"city in ai", TokenAI, CityToken("شیراز")},
		{"date in weather menu", TokenWeather, DateToken("2025-02-06")},
		{"malformed date", TokenForecast, DateToken("tomorrow")},
		{"unknown token", "", "course$detail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			if tt.setup != "" {
				h.press(1, tt.setup)
			}
			resp := h.press(1, tt.token)
			assert.Equal(t, msgExpired, lastText(resp))
			assert.Equal(t, session.None, h.mode(1))
			assert.Empty(t, h.weather.currents())
			assert.Empty(t, h.weather.forecasts())
		})
	}
}

func TestDefaultPrompt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	resp := h.say(1, "سلام")
	assert.Equal(t, msgDefaultPrompt, lastText(resp))
	assert.Equal(t, session.None, h.mode(1))

	h.press(1, TokenWeather)
	resp = h.say(1, "سلام")
	assert.Equal(t, msgDefaultPrompt, lastText(resp))
	assert.Equal(t, session.WeatherMenu, h.mode(1))
}

func TestAIMode(t *testing.T) {
	t.Parallel()

	t.Run("forwards text and stays in ai", func(t *testing.T) {
		t.Parallel()
		var typed []int64
		h := newHarness(t, func(c *Config) {
			c.Typing = func(_ context.Context, chatID int64) { typed = append(typed, chatID) }
		})
		h.press(7, TokenAI)
		resp := h.say(7, "پایتخت ایران کجاست؟")
		assert.Equal(t, "پاسخ 7: پایتخت ایران کجاست؟", lastText(resp))
		assert.Equal(t, session.AI, h.mode(7))
		assert.Equal(t, []int64{7}, typed)
	})

	t.Run("failure apologizes and stays in ai", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.ai.err = errBoom
		h.press(7, TokenAI)
		resp := h.say(7, "hi")
		assert.Equal(t, OutcomeError, resp.Outcome)
		assert.Equal(t, msgAIFailed, lastText(resp))
		assert.Equal(t, session.AI, h.mode(7))
	})

	t.Run("quota exhausted", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, func(c *Config) { c.AIQuota = &fakeQuota{allow: false} })
		h.press(7, TokenAI)
		resp := h.say(7, "hi")
		assert.Equal(t, OutcomeRateLimited, resp.Outcome)
		assert.Contains(t, lastText(resp), "۰ پیام")
		assert.Empty(t, h.ai.calls)
		assert.Equal(t, session.AI, h.mode(7))
	})

	t.Run("back leaves ai", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(7, TokenAI)
		h.say(7, LabelBack)
		assert.Empty(t, h.ai.calls)
		assert.Equal(t, session.None, h.mode(7))
		assert.Equal(t, []int64{7}, h.ai.resetUsers())
	})

	t.Run("leaving ai forgets the conversation", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(7, TokenAI)
		h.say(7, "سلام")
		h.press(7, TokenAI)
		assert.Empty(t, h.ai.resetUsers(), "staying in ai keeps the conversation")

		h.say(7, "/start")
		h.press(7, TokenWeather)
		assert.Equal(t, []int64{7}, h.ai.resetUsers(), "only the transition out of ai resets")

		h.press(7, TokenAI)
		h.press(7, "course$stale")
		assert.Equal(t, []int64{7, 7}, h.ai.resetUsers())
		assert.Equal(t, session.None, h.mode(7))
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, func(c *Config) { c.AI = nil })
		resp := h.press(7, TokenAI)
		assert.Equal(t, msgAIDisabled, lastText(resp))
		assert.Equal(t, session.None, h.mode(7))
	})
}

func TestPrices(t *testing.T) {
	t.Parallel()

	t.Run("gold", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenWeather)
		resp := h.press(1, TokenGold)
		assert.True(t, strings.HasPrefix(lastText(resp), headerGold+priceRule))
		assert.Contains(t, lastText(resp), "▫️ سکه امامی:")
		assert.Equal(t, session.None, h.mode(1))
	})

	t.Run("menu", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		resp := h.press(1, TokenPrices)
		assert.ElementsMatch(t, []string{TokenGold, TokenCurrency, TokenCrypto, TokenBack}, tokens(resp))
	})

	t.Run("legacy gold button opens the menu", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		resp := h.press(1, "gold")
		assert.Equal(t, msgPriceMenu, lastText(resp))
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.prices.err = errBoom
		resp := h.press(1, TokenCrypto)
		assert.Equal(t, OutcomeError, resp.Outcome)
		assert.Equal(t, msgPriceFailed, lastText(resp))
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.prices.lines = nil
		resp := h.press(1, TokenCurrency)
		assert.Equal(t, msgPriceEmpty, lastText(resp))
	})
}

func TestCommands(t *testing.T) {
	t.Parallel()

	t.Run("weather usage", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		assert.Equal(t, msgWeatherUsage, lastText(h.say(1, "/weather")))
		assert.Empty(t, h.weather.currents())
	})

	t.Run("weather with multi-word city", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenAI)
		h.say(1, "/weather بندر عباس")
		assert.Equal(t, []string{"بندر عباس"}, h.weather.currents())
		assert.Equal(t, session.None, h.mode(1))
	})

	t.Run("forecast usage on bad date", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		assert.Equal(t, msgForecastUsage, lastText(h.say(1, "/forecast شیراز فردا")))
		assert.Equal(t, msgForecastUsage, lastText(h.say(1, "/forecast")))
		assert.Empty(t, h.weather.forecasts())
	})

	t.Run("forecast addressed to the bot", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.say(1, "/forecast@KiarashBot شیراز ۱۹ بهمن ۱۴۰۳")
		assert.Equal(t, []forecastCall{{City: "شیراز", Date: jalali.GregorianDate{Year: 2025, Month: 2, Day: 7}}}, h.weather.forecasts())
	})

	t.Run("help keeps mode", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenAI)
		assert.Equal(t, msgHelp, lastText(h.say(1, "/help")))
		assert.Equal(t, session.AI, h.mode(1))
	})

	t.Run("unknown command", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		assert.Equal(t, msgDefaultPrompt, lastText(h.say(1, "/dance")))
	})
}

func TestGroupAddressing(t *testing.T) {
	t.Parallel()
	group := func(uid int64, text string, reply, mention bool) Event {
		return Event{UserID: uid, ChatID: -100, ChatKind: ChatGroup, Text: text, IsReplyToBot: reply, MentionsBot: mention, ReceivedAt: clock}
	}

	t.Run("unaddressed text ignored before flood guard", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenCurrent)
		for range 10 {
			resp := h.router.Handle(context.Background(), group(1, "تهران", false, false))
			assert.Equal(t, OutcomeIgnored, resp.Outcome)
			assert.Empty(t, resp.Replies)
		}
		assert.Zero(t, h.flood.HistoryLen(1))
		assert.Empty(t, h.weather.currents())
		assert.Equal(t, session.WeatherCurrent, h.mode(1))
	})

	t.Run("mention is stripped", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenCurrent)
		h.router.Handle(context.Background(), group(1, "@kiarashbot تهران", false, true))
		assert.Equal(t, []string{"تهران"}, h.weather.currents())
	})

	t.Run("mention detected from text", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		resp := h.router.Handle(context.Background(), group(1, LabelWeather+" @KiarashBot", false, false))
		assert.Equal(t, OutcomeSuccess, resp.Outcome)
		assert.Equal(t, session.WeatherMenu, h.mode(1))
	})

	t.Run("reply to bot", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.press(1, TokenCurrent)
		h.router.Handle(context.Background(), group(1, "تهران", true, false))
		assert.Equal(t, []string{"تهران"}, h.weather.currents())
	})

	t.Run("bare mention prompts", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		resp := h.router.Handle(context.Background(), group(1, "@KiarashBot", false, true))
		assert.Equal(t, msgDefaultPrompt, lastText(resp))
	})

	t.Run("commands for other bots ignored", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		resp := h.router.Handle(context.Background(), group(1, "/start@OtherBot", false, false))
		assert.Equal(t, OutcomeIgnored, resp.Outcome)
		resp = h.router.Handle(context.Background(), group(1, "/start", false, false))
		assert.Equal(t, OutcomeSuccess, resp.Outcome)
	})

	t.Run("buttons always handled", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		ev := Event{UserID: 1, ChatID: -100, ChatKind: ChatGroup, CallbackToken: TokenWeather, ReceivedAt: clock}
		assert.Equal(t, OutcomeSuccess, h.router.Handle(context.Background(), ev).Outcome)
	})
}

func TestFloodGuardedFreeText(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for i := range 5 {
		resp := h.say(1, fmt.Sprintf("msg %d", i))
		require.Equal(t, OutcomeSuccess, resp.Outcome, "message %d", i+1)
	}
	resp := h.say(1, "msg 6")
	assert.Equal(t, OutcomeRateLimited, resp.Outcome)
	assert.Contains(t, lastText(resp), "۳۰ دقیقه و ۰ ثانیه")

	// Menu operations bypass the guard, even while banned.
	assert.Equal(t, OutcomeSuccess, h.press(1, TokenWeather).Outcome)
	assert.Equal(t, OutcomeSuccess, h.say(1, LabelBack).Outcome)
	assert.Equal(t, OutcomeSuccess, h.say(1, "/weather").Outcome)

	// Commands with a query count.
	assert.Equal(t, OutcomeRateLimited, h.say(1, "/weather تهران").Outcome)
	assert.Empty(t, h.weather.currents())

	// Other users are unaffected.
	assert.Equal(t, OutcomeSuccess, h.say(2, "hello").Outcome)
}

func TestUnknownCommandsCountTowardFlood(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for i := range 5 {
		resp := h.say(1, fmt.Sprintf("/nope%d", i))
		require.Equal(t, OutcomeSuccess, resp.Outcome, "command %d", i+1)
		assert.Equal(t, msgDefaultPrompt, lastText(resp))
	}
	assert.Equal(t, 5, h.flood.HistoryLen(1))
	assert.Equal(t, OutcomeRateLimited, h.say(1, "/nope").Outcome)

	// A stale button is a menu operation and still answers.
	resp := h.press(1, "course$detail")
	assert.Equal(t, OutcomeSuccess, resp.Outcome)
	assert.Equal(t, msgExpired, lastText(resp))
}

func TestConcurrentBackWhileCityIsTyped(t *testing.T) {
	t.Parallel()
	var (
		h      *harness
		inject atomic.Bool
	)
	h = newHarness(t, func(c *Config) {
		c.Now = func() time.Time {
			// Another event of the same user lands while the city is parsed.
			if inject.CompareAndSwap(true, false) {
				h.press(1, TokenBack)
			}
			return clock
		}
	})

	h.press(1, TokenForecast)
	inject.Store(true)
	resp := h.say(1, "Shiraz")

	require.False(t, inject.Load(), "back was injected")
	sess := h.router.Sessions().Get(1)
	assert.Equal(t, session.None, sess.Mode, "back is not overwritten")
	assert.Empty(t, sess.PendingCity)
	assert.Equal(t, msgDefaultPrompt, lastText(resp), "text is reinterpreted on the newer session")
	assert.Empty(t, h.weather.forecasts())
}

func TestConcurrentCityAndBackSerialize(t *testing.T) {
	t.Parallel()
	for i := range 50 {
		h := newHarness(t)
		h.press(1, TokenForecast)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); h.press(1, CityToken("Shiraz")) }()
		go func() { defer wg.Done(); h.press(1, TokenBack) }()
		wg.Wait()

		// city then back ends in none; back then city expires into none.
		sess := h.router.Sessions().Get(1)
		require.Equal(t, session.None, sess.Mode, "round %d", i)
		require.Empty(t, sess.PendingCity, "round %d", i)
	}
}

func TestOutcomeOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeSuccess},
		{"flood", fmt.Errorf("%w: banned", apperrors.ErrRateLimited), OutcomeRateLimited},
		{"quota", fmt.Errorf("%w: ai", apperrors.ErrQuotaExceeded), OutcomeRateLimited},
		{"date", weather.ErrDateUnavailable, OutcomeNotFound},
		{"city", apperrors.ErrNotFound, OutcomeNotFound},
		{"upstream", errBoom, OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outcomeOf(tt.err), tt.name)
	}
}

func TestAIUnparseableMessage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ai.err = fmt.Errorf("%w: empty message", apperrors.ErrNotParseable)
	h.press(7, TokenAI)

	resp := h.say(7, "hi")
	assert.Equal(t, OutcomeSuccess, resp.Outcome)
	assert.Equal(t, msgDefaultPrompt, lastText(resp))
	assert.Equal(t, session.AI, h.mode(7))
}

func TestFloodInGroupAnswersBanOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ev := Event{UserID: 1, ChatID: -100, ChatKind: ChatGroup, Text: "@KiarashBot hi", MentionsBot: true, ReceivedAt: clock}

	for range 5 {
		h.router.Handle(context.Background(), ev)
	}
	ban := h.router.Handle(context.Background(), ev)
	assert.Equal(t, OutcomeRateLimited, ban.Outcome)
	assert.Len(t, ban.Replies, 1)

	again := h.router.Handle(context.Background(), ev)
	assert.Equal(t, OutcomeRateLimited, again.Outcome)
	assert.Empty(t, again.Replies)
}

func TestWelcomeMembers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	resp := h.router.Handle(context.Background(), Event{
		UserID: 1, ChatID: -100, ChatKind: ChatGroup,
		NewMembers: []Member{{FirstName: "Sara"}, {FirstName: "helper", IsBot: true}, {}},
	})
	require.Len(t, resp.Replies, 2)
	assert.Contains(t, resp.Replies[0].Text, "سلام Sara!")
	assert.Contains(t, resp.Replies[1].Text, "سلام "+defaultName+"!")

	resp = h.router.Handle(context.Background(), Event{UserID: 1, ChatID: -100, ChatKind: ChatGroup, NewMembers: []Member{{IsBot: true}}})
	assert.Equal(t, OutcomeIgnored, resp.Outcome)
}

func TestSlowCallDoesNotOverwriteNewerTransition(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.weather.started = make(chan struct{})
	h.weather.block = make(chan struct{})

	h.press(1, TokenCurrent)
	done := make(chan Response, 1)
	go func() { done <- h.say(1, "تهران") }()

	<-h.weather.started
	// The user moves on while the call is in flight; no lock is held by the call.
	h.press(1, TokenForecast)
	h.press(1, CityToken("Shiraz"))
	// Another user is not blocked either.
	assert.Equal(t, OutcomeSuccess, h.press(2, TokenWeather).Outcome)
	close(h.weather.block)

	resp := <-done
	assert.Equal(t, OutcomeSuccess, resp.Outcome)
	sess := h.router.Sessions().Get(1)
	assert.Equal(t, session.WeatherForecast, sess.Mode)
	assert.Equal(t, "Shiraz", sess.PendingCity)
}

func TestCollaboratorTimeout(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.EventTimeout = 20 * time.Millisecond })
	h.weather.block = make(chan struct{})

	h.press(1, TokenCurrent)
	resp := h.say(1, "تهران")
	assert.Equal(t, OutcomeError, resp.Outcome)
	assert.Equal(t, msgWeatherFailed, lastText(resp))
	assert.Equal(t, session.None, h.mode(1))
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.weather.panics = true

	resp := h.say(1, "/weather تهران")
	assert.Equal(t, OutcomeError, resp.Outcome)
	assert.Equal(t, msgInternalError, lastText(resp))

	// The router keeps working afterwards.
	assert.Equal(t, OutcomeSuccess, h.press(1, TokenWeather).Outcome)
}

func TestSessionIsolationUnderConcurrency(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// User A floods free text until banned.
		for i := range 20 {
			h.say(100, fmt.Sprintf("spam %d", i))
		}
	}()
	go func() {
		defer wg.Done()
		// User B walks the forecast flow with menu operations and one query.
		for range 20 {
			h.press(200, TokenWeather)
			h.press(200, TokenForecast)
			h.press(200, CityToken("Shiraz"))
		}
	}()
	wg.Wait()

	assert.False(t, h.flood.BannedUntil(100).IsZero(), "user A banned")
	assert.True(t, h.flood.BannedUntil(200).IsZero(), "user B not banned")
	assert.Zero(t, h.flood.HistoryLen(200))

	a := h.router.Sessions().Get(100)
	b := h.router.Sessions().Get(200)
	assert.Equal(t, session.None, a.Mode)
	assert.Equal(t, session.WeatherForecast, b.Mode)
	assert.Equal(t, "Shiraz", b.PendingCity)

	resp := h.press(200, DateToken("2025-02-06"))
	assert.Equal(t, OutcomeSuccess, resp.Outcome)
	assert.Len(t, h.weather.forecasts(), 1)
}

func TestRouterDefaultsReceivedAt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	for range 6 {
		h.router.Handle(context.Background(), Event{UserID: 9, ChatID: 9, Text: "x"})
	}
	want := clock.Add(30 * time.Minute)
	assert.True(t, h.flood.BannedUntil(9).Equal(want), "ban computed from the router clock")
}

func TestWeatherFailureClassification(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	assert.Equal(t, msgDateUnavailable, lastText(h.router.weatherFailure(ctx, weather.ErrDateUnavailable)))
	assert.Equal(t, msgCityNotFound, lastText(h.router.weatherFailure(ctx, apperrors.ErrNotFound)))
	assert.Equal(t, msgWeatherFailed, lastText(h.router.weatherFailure(ctx, errors.New("x"))))
	assert.Equal(t, msgWeatherFailed, lastText(h.router.weatherFailure(ctx, context.DeadlineExceeded)))
}
