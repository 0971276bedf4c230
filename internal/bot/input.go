package bot

import (
	"strings"
)

// TokenSplitChar separates the module and the argument of a callback token,
// e.g. "city$Shiraz" or "date$2025-02-06". Telegram caps callback data at 64
// bytes, so arguments stay short.
const TokenSplitChar = "$"

// Action is what an event asks the router to do once the surface it arrived
// on (inline button, reply keyboard, command) has been normalized away.
type Action uint8

const (
	ActText Action = iota // free text, dispatched on the session mode
	ActStart
	ActBack
	ActHelp
	ActWeather
	ActWeatherCurrent
	ActWeatherForecast
	ActCity
	ActDate
	ActAI
	ActPrices
	ActGold
	ActCurrency
	ActCrypto
	ActWeatherCommand
	ActForecastCommand
	ActUnknown // callback data or command the router does not know
)

// Input is a normalized event.
type Input struct {
	Action Action
	// Arg is the token argument (city, date) or the command arguments.
	// For an unknown typed command it is the command text.
	Arg string
}

// Callback tokens.
const (
	TokenWeather  = "weather"
	TokenCurrent  = "weather$current"
	TokenForecast = "weather$forecast"
	TokenPrices   = "prices"
	TokenGold     = "price$gold"
	TokenCurrency = "price$currency"
	TokenCrypto   = "price$crypto"
	TokenAI       = "ai"
	TokenBack     = "back"

	tokenCity = "city"
	tokenDate = "date"
	// tokenLegacyGold is the price button of menus sent before the price sub-menu existed.
	tokenLegacyGold = "gold"
)

var tokenActions = map[string]Action{
	TokenWeather:    ActWeather,
	TokenCurrent:    ActWeatherCurrent,
	TokenForecast:   ActWeatherForecast,
	TokenPrices:     ActPrices,
	tokenLegacyGold: ActPrices,
	TokenGold:       ActGold,
	TokenCurrency:   ActCurrency,
	TokenCrypto:     ActCrypto,
	TokenAI:         ActAI,
	TokenBack:       ActBack,
}

// CityToken returns the callback token selecting city.
func CityToken(city string) string {
	return tokenCity + TokenSplitChar + city
}

// DateToken returns the callback token selecting a YYYY-MM-DD date.
func DateToken(date string) string {
	return tokenDate + TokenSplitChar + date
}

// ParseToken maps callback data onto an Input.
func ParseToken(data string) Input {
	data = strings.TrimSpace(data)
	if act, ok := tokenActions[data]; ok {
		return Input{Action: act}
	}

	module, arg, ok := strings.Cut(data, TokenSplitChar)
	if !ok || strings.TrimSpace(arg) == "" {
		return Input{Action: ActUnknown}
	}
	switch module {
	case tokenCity:
		return Input{Action: ActCity, Arg: strings.TrimSpace(arg)}
	case tokenDate:
		return Input{Action: ActDate, Arg: strings.TrimSpace(arg)}
	default:
		return Input{Action: ActUnknown}
	}
}

// labelTokens maps every menu button label to its callback token so a label
// typed (or sent by the reply keyboard) behaves exactly like the button.
// Picker labels (cities, dates) are not included: typed city names are free text.
var labelTokens = func() map[string]string {
	m := make(map[string]string)
	for _, kb := range []*Keyboard{topMenu(), weatherMenu(), priceMenu()} {
		for _, row := range kb.Rows {
			for _, b := range row {
				m[b.Label] = b.Data
			}
		}
	}
	return m
}()

var commandActions = map[string]Action{
	"start":            ActStart,
	"help":             ActHelp,
	"weather":          ActWeatherCommand,
	"forecast":         ActForecastCommand,
	"tutorial_weather": ActWeather,
	"ai":               ActAI,
	"prices":           ActPrices,
}

// ParseText maps message text (already stripped of the bot mention) onto an Input.
func ParseText(text string) Input {
	text = strings.TrimSpace(text)
	if token, ok := labelTokens[text]; ok {
		return ParseToken(token)
	}
	if isCommand(text) {
		name, args := splitCommand(text)
		if act, ok := commandActions[name]; ok {
			return Input{Action: act, Arg: args}
		}
		return Input{Action: ActUnknown, Arg: text}
	}
	return Input{Action: ActText, Arg: text}
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// splitCommand splits "/forecast@KiarashBot Shiraz 18 بهمن" into the lowercase
// command name and the normalized argument string.
func splitCommand(text string) (name, args string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(text), "/"))
	if len(fields) == 0 {
		return "", ""
	}
	name, _, _ = strings.Cut(fields[0], "@")
	return strings.ToLower(name), strings.Join(fields[1:], " ")
}

// bypassesFlood reports whether the input is a menu operation. Menu operations
// are never counted by the flood guard; free text, unknown typed commands and
// commands carrying a query are.
func (in Input) bypassesFlood() bool {
	switch in.Action {
	case ActText:
		return false
	case ActWeatherCommand, ActForecastCommand, ActUnknown:
		return in.Arg == ""
	default:
		return true
	}
}
