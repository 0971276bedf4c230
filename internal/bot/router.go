// Package bot is the conversation router: it turns transport-neutral events
// into replies, driving a per-user mode machine over the weather, price and AI
// services and shielding them from message floods.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kiarash-bot/kiarash/internal/ctxutil"
	apperrors "github.com/kiarash-bot/kiarash/internal/errors"
	"github.com/kiarash-bot/kiarash/internal/jalali"
	"github.com/kiarash-bot/kiarash/internal/logger"
	"github.com/kiarash-bot/kiarash/internal/metrics"
	"github.com/kiarash-bot/kiarash/internal/price"
	"github.com/kiarash-bot/kiarash/internal/ratelimit"
	"github.com/kiarash-bot/kiarash/internal/sentry"
	"github.com/kiarash-bot/kiarash/internal/session"
	"github.com/kiarash-bot/kiarash/internal/weather"
)

// DefaultDateChoices is the number of days offered by the date picker.
const DefaultDateChoices = 6

// maxTransitionAttempts bounds how often a transition is retaken after its
// conditional session write lost to a concurrent event of the same user.
const maxTransitionAttempts = 4

// WeatherProvider serves current conditions and date-scoped forecasts.
type WeatherProvider interface {
	Current(ctx context.Context, city string) (*weather.Current, error)
	Forecast(ctx context.Context, city string, date jalali.GregorianDate) (*weather.ForecastDay, error)
}

// PriceProvider serves the three price reports.
type PriceProvider interface {
	Gold(ctx context.Context) ([]price.Line, error)
	Currency(ctx context.Context) ([]price.Line, error)
	Crypto(ctx context.Context) ([]price.Line, error)
}

// AIProvider answers free text; it owns any per-user conversation memory.
type AIProvider interface {
	Chat(ctx context.Context, userID int64, text string) (string, error)
	// Reset forgets userID's conversation.
	Reset(userID int64)
}

// QuotaLimiter bounds AI usage per user.
type QuotaLimiter interface {
	Allow(userID int64) bool
	DailyRemaining(userID int64) int
}

// Config wires a Router. Weather, Prices and Flood are required.
type Config struct {
	Weather WeatherProvider
	Prices  PriceProvider
	AI      AIProvider   // nil disables the AI mode
	AIQuota QuotaLimiter // nil means unlimited

	Flood    *ratelimit.FloodGuard
	Sessions *session.Store // nil creates an empty store

	Logger  *logger.Logger
	Metrics *metrics.Metrics

	// BotUsername is stripped from group messages that mention the bot.
	BotUsername string
	// EventTimeout bounds each collaborator call; 0 means no bound.
	EventTimeout time.Duration
	// Location is the time zone used to resolve "today" for dates.
	Location    *time.Location
	DateChoices int

	// Typing, when set, is called before a slow AI call to show a chat action.
	Typing func(ctx context.Context, chatID int64)

	Now func() time.Time
}

// Router dispatches events on the sender's session mode.
type Router struct {
	weather  WeatherProvider
	prices   PriceProvider
	ai       AIProvider
	aiQuota  QuotaLimiter
	flood    *ratelimit.FloodGuard
	sessions *session.Store
	logger   *logger.Logger

	botUsername  string
	eventTimeout time.Duration
	loc          *time.Location
	dateChoices  int
	typing       func(ctx context.Context, chatID int64)
	now          func() time.Time

	handler HandlerFunc
}

// NewRouter creates a Router.
func NewRouter(cfg Config) *Router {
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewStore()
	}
	if cfg.Flood == nil {
		cfg.Flood = ratelimit.NewFloodGuard(ratelimit.FloodConfig{})
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewWithWriter("error", io.Discard)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DateChoices <= 0 {
		cfg.DateChoices = DefaultDateChoices
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := &Router{
		weather:      cfg.Weather,
		prices:       cfg.Prices,
		ai:           cfg.AI,
		aiQuota:      cfg.AIQuota,
		flood:        cfg.Flood,
		sessions:     cfg.Sessions,
		logger:       cfg.Logger.WithModule("bot"),
		botUsername:  strings.TrimPrefix(cfg.BotUsername, "@"),
		eventTimeout: cfg.EventTimeout,
		loc:          cfg.Location,
		dateChoices:  cfg.DateChoices,
		typing:       cfg.Typing,
		now:          cfg.Now,
	}
	r.handler = Chain(r.dispatch,
		MetricsMiddleware(cfg.Metrics),
		LoggingMiddleware(r.logger),
		RecoveryMiddleware(r.logger),
	)
	return r
}

// Handle processes one event. It is safe for concurrent use; events of
// different users never wait on each other.
func (r *Router) Handle(ctx context.Context, ev Event) Response {
	ctx = ctxutil.WithUserID(ctx, ev.UserID)
	ctx = ctxutil.WithChatID(ctx, ev.ChatID)
	return r.handler(ctx, ev)
}

// Sessions exposes the session store.
func (r *Router) Sessions() *session.Store {
	return r.sessions
}

// SetBotUsername sets the username stripped from group mentions. It must be
// called before the first event.
func (r *Router) SetBotUsername(username string) {
	r.botUsername = strings.TrimPrefix(username, "@")
}

func (r *Router) dispatch(ctx context.Context, ev Event) Response {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = r.now()
	}

	if len(ev.NewMembers) > 0 {
		return r.welcomeMembers(ev.NewMembers)
	}

	var in Input
	if ev.CallbackToken != "" {
		in = ParseToken(ev.CallbackToken)
	} else {
		if !r.addressed(ev) {
			return Response{Outcome: OutcomeIgnored}
		}
		in = ParseText(StripMention(ev.Text, r.botUsername))
		if in.Action == ActText && in.Arg == "" {
			return respond(plain(msgDefaultPrompt))
		}
	}

	if !in.bypassesFlood() {
		if d := r.flood.Check(ev.UserID, ev.ReceivedAt); d.Rejected {
			return r.flooded(ctx, ev, d)
		}
	}

	return r.route(ctx, ev, in)
}

// addressed applies the group rule: in groups a message is handled only when
// it replies to the bot or mentions it. Commands are handled unless they name
// another bot.
func (r *Router) addressed(ev Event) bool {
	if !ev.IsGroup() {
		return true
	}
	if isCommand(ev.Text) {
		first := strings.Fields(ev.Text)[0]
		_, target, ok := strings.Cut(first, "@")
		return !ok || r.botUsername == "" || strings.EqualFold(target, r.botUsername)
	}
	return ev.IsReplyToBot || ev.MentionsBot || MentionsBot(ev.Text, r.botUsername)
}

// route is the transition table. Every Action has exactly one row.
func (r *Router) route(ctx context.Context, ev Event, in Input) Response {
	uid := ev.UserID

	switch in.Action {
	case ActStart, ActBack:
		r.enter(ctx, uid, session.None)
		return respond(
			Reply{Text: msgWelcome, Keyboard: topMenu()},
			Reply{Text: msgMainMenu, Keyboard: mainReplyKeyboard()},
		)

	case ActHelp:
		return respond(plain(msgHelp))

	case ActWeather:
		r.enter(ctx, uid, session.WeatherMenu)
		return respond(Reply{Text: msgWeatherMenu, Keyboard: weatherMenu()})

	case ActWeatherCurrent:
		r.enter(ctx, uid, session.WeatherCurrent)
		return respond(Reply{Text: msgPickCity, Keyboard: cityPicker()})

	case ActWeatherForecast:
		r.enter(ctx, uid, session.WeatherForecast)
		return respond(Reply{Text: msgPickCityDate, Keyboard: cityPicker()})

	case ActCity:
		return r.selectCity(ctx, uid, in.Arg)

	case ActDate:
		return r.selectDate(ctx, uid, in.Arg)

	case ActAI:
		if r.ai == nil {
			r.enter(ctx, uid, session.None)
			return respond(plain(msgAIDisabled))
		}
		r.enter(ctx, uid, session.AI)
		return respond(plain(msgAIIntro))

	case ActPrices:
		r.enter(ctx, uid, session.None)
		return respond(Reply{Text: msgPriceMenu, Keyboard: priceMenu()})

	case ActGold, ActCurrency, ActCrypto:
		return r.showPrices(ctx, uid, in.Action)

	case ActWeatherCommand:
		if in.Arg == "" {
			return respond(plain(msgWeatherUsage))
		}
		return r.currentWeather(ctx, uid, r.sessions.Get(uid), in.Arg)

	case ActForecastCommand:
		if in.Arg == "" {
			return respond(plain(msgForecastUsage))
		}
		req, err := r.parseForecast(strings.Fields(in.Arg))
		if err != nil {
			return respond(plain(msgForecastUsage))
		}
		return r.forecast(ctx, uid, r.sessions.Get(uid), req.City, req.Date)

	case ActText:
		return r.freeText(ctx, ev, in.Arg)

	case ActUnknown:
		if ev.CallbackToken != "" {
			return r.expired(ctx, uid)
		}
		return respond(plain(msgDefaultPrompt))
	}

	r.logger.WithField("action", in.Action).WarnContext(ctx, "Unhandled action")
	return respond(plain(msgDefaultPrompt))
}

// transition runs step against a fresh snapshot of uid's session. step reports
// false when its conditional write found the session changed; the decision is
// then retaken on the newer session.
func (r *Router) transition(ctx context.Context, uid int64, step func(session.Session) (Response, bool)) Response {
	for range maxTransitionAttempts {
		if resp, ok := step(r.sessions.Get(uid)); ok {
			return resp
		}
		r.logger.DebugContext(ctx, "Session changed during transition, retrying")
	}
	r.logger.WarnContext(ctx, "Session transition abandoned after repeated conflicts")
	return respond(plain(msgDefaultPrompt))
}

// freeText dispatches free text on the session mode.
func (r *Router) freeText(ctx context.Context, ev Event, text string) Response {
	return r.transition(ctx, ev.UserID, func(sess session.Session) (Response, bool) {
		return r.freeTextIn(ctx, ev, sess, text)
	})
}

func (r *Router) freeTextIn(ctx context.Context, ev Event, sess session.Session, text string) (Response, bool) {
	uid := ev.UserID

	switch sess.Mode {
	case session.None, session.WeatherMenu:
		return respond(plain(msgDefaultPrompt)), true

	case session.WeatherCurrent:
		return r.currentWeather(ctx, uid, sess, text), true

	case session.WeatherForecast:
		tokens := strings.Fields(text)
		if req, err := r.parseForecast(tokens); err == nil {
			return r.forecast(ctx, uid, sess, req.City, req.Date), true
		}
		// "18 بهمن" after a city was picked.
		if sess.PendingCity != "" {
			withCity := append([]string{sess.PendingCity}, tokens...)
			if req, err := jalali.ParseForecastArgs(withCity, r.today()); err == nil {
				return r.forecast(ctx, uid, sess, req.City, req.Date), true
			}
		}
		city := strings.Join(tokens, " ")
		if !r.sessions.SetIfVersion(uid, sess.Version, session.WeatherForecast, city) {
			return Response{}, false
		}
		return respond(r.datePrompt(city)), true

	case session.AI:
		return r.chat(ctx, ev, text), true
	}

	r.logger.WithField("mode", sess.Mode.String()).WarnContext(ctx, "Session in unknown mode, resetting")
	if !r.sessions.SetIfVersion(uid, sess.Version, session.None, "") {
		return Response{}, false
	}
	return respond(plain(msgDefaultPrompt)), true
}

func (r *Router) selectCity(ctx context.Context, uid int64, city string) Response {
	return r.transition(ctx, uid, func(sess session.Session) (Response, bool) {
		switch sess.Mode {
		case session.WeatherCurrent:
			return r.currentWeather(ctx, uid, sess, city), true
		case session.WeatherForecast:
			if !r.sessions.SetIfVersion(uid, sess.Version, session.WeatherForecast, city) {
				return Response{}, false
			}
			return respond(r.datePrompt(city)), true
		default:
			return r.expiredFrom(ctx, uid, sess)
		}
	})
}

func (r *Router) selectDate(ctx context.Context, uid int64, arg string) Response {
	date, err := jalali.ParseGregorian(arg)
	if err != nil {
		return r.expired(ctx, uid)
	}
	return r.transition(ctx, uid, func(sess session.Session) (Response, bool) {
		if sess.Mode != session.WeatherForecast {
			return r.expiredFrom(ctx, uid, sess)
		}
		if sess.PendingCity == "" {
			return respond(Reply{Text: msgPickCityDate, Keyboard: cityPicker()}), true
		}
		return r.forecast(ctx, uid, sess, sess.PendingCity, date), true
	})
}

func (r *Router) datePrompt(city string) Reply {
	return Reply{
		Text:     fmt.Sprintf(msgPickDate, city),
		Keyboard: datePicker(r.today(), r.dateChoices),
	}
}

// parseForecast parses "city day month [year]". Cities of several words
// ("بندر عباس ۱۸ بهمن") are retried with the leading tokens joined.
func (r *Router) parseForecast(tokens []string) (jalali.ForecastRequest, error) {
	now := r.today()
	req, err := jalali.ParseForecastArgs(tokens, now)
	if err == nil {
		return req, nil
	}
	for _, dateLen := range []int{3, 2} {
		if len(tokens) <= dateLen+1 {
			continue
		}
		split := len(tokens) - dateLen
		joined := append([]string{strings.Join(tokens[:split], " ")}, tokens[split:]...)
		if req, err2 := jalali.ParseForecastArgs(joined, now); err2 == nil {
			return req, nil
		}
	}
	return jalali.ForecastRequest{}, err
}

func (r *Router) currentWeather(ctx context.Context, uid int64, before session.Session, city string) Response {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	cur, err := r.weather.Current(callCtx, city)
	r.settle(ctx, uid, before, session.None)
	if err != nil {
		return r.weatherFailure(ctx, err)
	}
	return respond(plain(formatCurrent(cur)))
}

func (r *Router) forecast(ctx context.Context, uid int64, before session.Session, city string, date jalali.GregorianDate) Response {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	day, err := r.weather.Forecast(callCtx, city, date)
	r.settle(ctx, uid, before, session.None)
	if err != nil {
		return r.weatherFailure(ctx, err)
	}
	return respond(plain(formatForecast(day, date)))
}

func (r *Router) weatherFailure(ctx context.Context, err error) Response {
	switch {
	case errors.Is(err, weather.ErrDateUnavailable):
		return Response{Replies: []Reply{plain(msgDateUnavailable)}, Outcome: outcomeOf(err)}
	case apperrors.IsNotFound(err):
		return Response{Replies: []Reply{plain(msgCityNotFound)}, Outcome: outcomeOf(err)}
	}
	r.reportFailure(ctx, "weather", err)
	return failed(plain(msgWeatherFailed))
}

func (r *Router) showPrices(ctx context.Context, uid int64, act Action) Response {
	before := r.sessions.Get(uid)

	fetch, header := r.prices.Gold, headerGold
	switch act {
	case ActCurrency:
		fetch, header = r.prices.Currency, headerCurrency
	case ActCrypto:
		fetch, header = r.prices.Crypto, headerCrypto
	}

	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	lines, err := fetch(callCtx)
	r.settle(ctx, uid, before, session.None)
	if err != nil {
		r.reportFailure(ctx, "price", err)
		return failed(plain(msgPriceFailed))
	}
	if len(lines) == 0 {
		return respond(plain(msgPriceEmpty))
	}
	return respond(plain(formatPrices(header, lines)))
}

// chat forwards text to the AI. The mode stays AI whatever the outcome.
func (r *Router) chat(ctx context.Context, ev Event, text string) Response {
	if r.ai == nil {
		r.enter(ctx, ev.UserID, session.None)
		return respond(plain(msgAIDisabled))
	}
	if r.aiQuota != nil && !r.aiQuota.Allow(ev.UserID) {
		remaining := r.aiQuota.DailyRemaining(ev.UserID)
		err := fmt.Errorf("%w: ai chat, %d left today", apperrors.ErrQuotaExceeded, remaining)
		r.logger.WithError(err).InfoContext(ctx, "AI quota exceeded")
		text := fmt.Sprintf(msgAIQuota, jalali.PersianDigits(strconv.Itoa(remaining)))
		return Response{Replies: []Reply{plain(text)}, Outcome: outcomeOf(err)}
	}
	if r.typing != nil {
		r.typing(ctx, ev.ChatID)
	}

	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	reply, err := r.ai.Chat(callCtx, ev.UserID, text)
	if apperrors.IsNotParseable(err) {
		return respond(plain(msgDefaultPrompt))
	}
	if err != nil {
		r.reportFailure(ctx, "ai", err)
		return failed(plain(msgAIFailed))
	}
	return respond(plain(reply))
}

func (r *Router) welcomeMembers(members []Member) Response {
	var replies []Reply
	for _, m := range members {
		if m.IsBot {
			continue
		}
		name := strings.TrimSpace(m.FirstName)
		if name == "" {
			name = defaultName
		}
		replies = append(replies, plain(fmt.Sprintf(msgJoinWelcome, name)))
	}
	if len(replies) == 0 {
		return Response{Outcome: OutcomeIgnored}
	}
	return respond(replies...)
}

func (r *Router) expired(ctx context.Context, uid int64) Response {
	r.enter(ctx, uid, session.None)
	return respond(Reply{Text: msgExpired, Keyboard: topMenu()})
}

// expiredFrom is expired for a decision taken on sess; it reports false when
// the session changed since.
func (r *Router) expiredFrom(ctx context.Context, uid int64, sess session.Session) (Response, bool) {
	if !r.sessions.SetIfVersion(uid, sess.Version, session.None, "") {
		return Response{}, false
	}
	r.leaving(ctx, uid, sess.Mode, session.None)
	return respond(Reply{Text: msgExpired, Keyboard: topMenu()}), true
}

// enter moves uid to mode whatever its current session.
func (r *Router) enter(ctx context.Context, uid int64, mode session.Mode) {
	prev := r.sessions.Swap(uid, mode, "")
	r.leaving(ctx, uid, prev.Mode, mode)
}

// leaving forgets the AI conversation when uid leaves the AI mode.
func (r *Router) leaving(ctx context.Context, uid int64, from, to session.Mode) {
	if from != session.AI || to == session.AI || r.ai == nil {
		return
	}
	r.ai.Reset(uid)
	r.logger.DebugContext(ctx, "AI conversation reset")
}

// flooded answers a rejected message. In groups only the message that
// installs the ban is answered, so a flood does not echo into the chat.
func (r *Router) flooded(ctx context.Context, ev Event, d ratelimit.Decision) Response {
	err := fmt.Errorf("%w: banned for another %s", apperrors.ErrRateLimited, d.Remaining)
	log := r.logger.WithField("new_ban", d.NewBan).WithError(err)
	if d.NewBan {
		log.WarnContext(ctx, "User banned for flooding")
	} else {
		log.DebugContext(ctx, "Message rejected by flood guard")
	}

	resp := Response{Outcome: outcomeOf(err)}
	if ev.IsGroup() && !d.NewBan {
		return resp
	}
	resp.Replies = []Reply{plain(formatRemaining(d.RemainingMinSec()))}
	return resp
}

// settle records the end of a collaborator call: the user returns to mode
// unless the session changed while the call was in flight.
func (r *Router) settle(ctx context.Context, uid int64, before session.Session, mode session.Mode) {
	if !r.sessions.SetIfVersion(uid, before.Version, mode, "") {
		r.logger.DebugContext(ctx, "Session changed during collaborator call, keeping newer state")
	}
}

func (r *Router) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.eventTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.eventTimeout)
}

func (r *Router) today() time.Time {
	return r.now().In(r.loc)
}

// reportFailure logs a collaborator failure and reports unexpected ones to Sentry.
func (r *Router) reportFailure(ctx context.Context, module string, err error) {
	log := r.logger.WithField("collaborator", module).WithError(err)
	if errors.Is(err, apperrors.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		log.WarnContext(ctx, "Collaborator call timed out")
		return
	}
	if errors.Is(err, context.Canceled) {
		log.DebugContext(ctx, "Collaborator call canceled")
		return
	}
	log.WithField("upstream", apperrors.IsUpstream(err)).ErrorContext(ctx, "Collaborator call failed")
	sentry.CaptureError(ctx, module, err)
}

// outcomeOf classifies a handling error for metrics and logs.
func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case apperrors.IsRateLimited(err), apperrors.IsQuotaExceeded(err):
		return OutcomeRateLimited
	case apperrors.IsNotFound(err):
		return OutcomeNotFound
	}
	return OutcomeError
}
