package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kiarash-bot/kiarash/internal/jalali"
	"github.com/kiarash-bot/kiarash/internal/price"
	"github.com/kiarash-bot/kiarash/internal/weather"
)

const priceRule = "\n━━━━━━━━━━━━━━━━━━"

// Price report headers.
const (
	headerGold     = "🪙 قیمت لحظه‌ای طلا و سکه"
	headerCurrency = "💵 قیمت لحظه‌ای ارز"
	headerCrypto   = "💎 قیمت لحظه‌ای رمز ارزها"
)

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatCurrent(c *weather.Current) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌤 وضعیت آب و هوای %s:\n", c.Location)
	fmt.Fprintf(&b, "📝 توضیحات: %s\n", c.Condition)
	fmt.Fprintf(&b, "🌡 دما: %s°C\n", num(c.TempC))
	fmt.Fprintf(&b, "💧 رطوبت: %d%%\n", c.Humidity)
	fmt.Fprintf(&b, "🌬 فشار: %s mb\n", num(c.PressureMb))
	fmt.Fprintf(&b, "🌡 دمای محسوس: %s°C\n", num(c.FeelsLikeC))
	fmt.Fprintf(&b, "🌬 سرعت باد: %s km/h\n", num(c.WindKph))
	fmt.Fprintf(&b, "🌪 تندباد: %s km/h\n", num(c.GustKph))
	fmt.Fprintf(&b, "☁️ پوشش ابر: %d%%\n", c.Cloud)
	fmt.Fprintf(&b, "👁 دید افقی: %s km\n", num(c.VisKm))
	fmt.Fprintf(&b, "🌧 بارش: %s mm\n", num(c.PrecipMm))
	fmt.Fprintf(&b, "🔆 شاخص UV: %s\n", num(c.UV))
	fmt.Fprintf(&b, "🕐 آخرین به‌روزرسانی: %s", c.LastUpdated)
	return b.String()
}

func formatForecast(d *weather.ForecastDay, date jalali.GregorianDate) string {
	j := jalali.GregorianToJalali(date)
	var b strings.Builder
	fmt.Fprintf(&b, "🌤 پیش بینی آب و هوای %s برای %s (%s):\n", d.Location, date, jalali.PersianDigits(j.String()))
	fmt.Fprintf(&b, "📝 توضیحات غالب: %s\n", d.Condition)
	fmt.Fprintf(&b, "🌡 حداقل/حداکثر دما: %s°C / %s°C\n", num(d.MinTempC), num(d.MaxTempC))
	fmt.Fprintf(&b, "🌡 دمای میانگین: %s°C\n", num(d.AvgTempC))
	fmt.Fprintf(&b, "💧 رطوبت میانگین: %s%%\n", num(d.AvgHumidity))
	fmt.Fprintf(&b, "🌬 بیشترین سرعت باد: %s km/h\n", num(d.MaxWindKph))
	fmt.Fprintf(&b, "🌧 احتمال بارش: %d%%\n", d.ChanceOfRain)
	fmt.Fprintf(&b, "🌧 مجموع بارش: %s mm\n", num(d.TotalPrecip))
	fmt.Fprintf(&b, "👁 دید افقی میانگین: %s km\n", num(d.AvgVisKm))
	fmt.Fprintf(&b, "🔆 شاخص UV: %s\n", num(d.UV))
	fmt.Fprintf(&b, "🌅 طلوع: %s | 🌇 غروب: %s", orUnknown(d.Sunrise), orUnknown(d.Sunset))
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "نامشخص"
	}
	return s
}

// formatPrices renders a price report: the header, then one block per line.
func formatPrices(header string, lines []price.Line) string {
	parts := make([]string, 0, len(lines)+1)
	parts = append(parts, header+priceRule)
	for _, l := range lines {
		parts = append(parts, formatPriceLine(l))
	}
	return strings.Join(parts, "\n")
}

func formatPriceLine(l price.Line) string {
	var b strings.Builder
	fmt.Fprintf(&b, "▫️ %s:\n", l.Label)
	if l.Toman != "" {
		// Crypto: USD quote first, toman equivalent below.
		fmt.Fprintf(&b, "   💵 %s  %s\n", l.Price, l.Change)
		fmt.Fprintf(&b, "   💰 %s\n", l.Toman)
	} else {
		b.WriteString("   💲 " + l.Price)
		if l.Change != "" {
			b.WriteString("  " + l.Change)
		}
		b.WriteString("\n")
	}
	b.WriteString("   🕐 " + l.Time)
	return b.String()
}

// formatRemaining renders a ban's remaining time as Persian minutes and seconds.
func formatRemaining(minutes, seconds int) string {
	return fmt.Sprintf(msgFlooded,
		jalali.PersianDigits(strconv.Itoa(minutes)),
		jalali.PersianDigits(strconv.Itoa(seconds)))
}
