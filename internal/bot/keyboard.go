package bot

import (
	"fmt"
	"time"

	"github.com/kiarash-bot/kiarash/internal/jalali"
)

// Top menu labels. The reply keyboard sends them back as plain text.
const (
	LabelWeather = "🌤️آب و هوا"
	LabelPrices  = "💰قیمت طلا و دلار"
	LabelAI      = "🤖هوش مصنوعی"
	LabelBack    = "⬅️بازگشت"
)

// PickerCities are offered as buttons by the city picker.
var PickerCities = []string{
	"تهران", "مشهد", "اصفهان",
	"شیراز", "تبریز", "اهواز",
	"کرج", "قم", "رشت",
	"یزد", "کرمان", "بندرعباس",
}

const (
	cityColumns = 3
	dateColumns = 2
)

func backRow() []Button {
	return []Button{{Label: LabelBack, Data: TokenBack}}
}

func topMenu() *Keyboard {
	return &Keyboard{Kind: KeyboardInline, Rows: [][]Button{
		{{Label: LabelWeather, Data: TokenWeather}, {Label: LabelPrices, Data: TokenPrices}},
		{{Label: LabelAI, Data: TokenAI}, {Label: LabelBack, Data: TokenBack}},
	}}
}

// mainReplyKeyboard is the persistent keyboard installed by /start.
func mainReplyKeyboard() *Keyboard {
	return &Keyboard{Kind: KeyboardReply, Rows: [][]Button{
		{{Label: LabelWeather}, {Label: LabelPrices}},
		{{Label: LabelAI}, {Label: LabelBack}},
	}}
}

func weatherMenu() *Keyboard {
	return &Keyboard{Kind: KeyboardInline, Rows: [][]Button{
		{{Label: "📍 دمای فعلی", Data: TokenCurrent}, {Label: "📅 پیش‌بینی", Data: TokenForecast}},
		backRow(),
	}}
}

func priceMenu() *Keyboard {
	return &Keyboard{Kind: KeyboardInline, Rows: [][]Button{
		{{Label: "🪙 طلا و سکه", Data: TokenGold}, {Label: "💵 ارز", Data: TokenCurrency}},
		{{Label: "💎 رمز ارز", Data: TokenCrypto}},
		backRow(),
	}}
}

func cityPicker() *Keyboard {
	buttons := make([]Button, 0, len(PickerCities))
	for _, c := range PickerCities {
		buttons = append(buttons, Button{Label: c, Data: CityToken(c)})
	}
	rows := chunk(buttons, cityColumns)
	rows = append(rows, backRow())
	return &Keyboard{Kind: KeyboardInline, Rows: rows}
}

// datePicker offers days consecutive dates starting at today (in the router's
// time zone), labelled with their Jalali day and month.
func datePicker(today time.Time, days int) *Keyboard {
	buttons := make([]Button, 0, days)
	for i := range days {
		t := today.AddDate(0, 0, i)
		g := jalali.FromTime(t)
		buttons = append(buttons, Button{Label: dateLabel(i, jalali.GregorianToJalali(g)), Data: DateToken(g.String())})
	}
	rows := chunk(buttons, dateColumns)
	rows = append(rows, backRow())
	return &Keyboard{Kind: KeyboardInline, Rows: rows}
}

func dateLabel(offset int, j jalali.JalaliDate) string {
	day := jalali.PersianDigits(fmt.Sprintf("%d %s", j.Day, jalali.MonthName(j.Month)))
	switch offset {
	case 0:
		return "امروز، " + day
	case 1:
		return "فردا، " + day
	default:
		return day
	}
}

func chunk(buttons []Button, size int) [][]Button {
	var rows [][]Button
	for len(buttons) > size {
		rows = append(rows, buttons[:size:size])
		buttons = buttons[size:]
	}
	if len(buttons) > 0 {
		rows = append(rows, buttons)
	}
	return rows
}
