package weather

import (
	"strings"
)

// cityAliases maps Persian city names to the names WeatherAPI resolves reliably.
var cityAliases = map[string]string{
	"تهران":     "Tehran",
	"مشهد":      "Mashhad",
	"اصفهان":    "Isfahan",
	"شیراز":     "Shiraz",
	"تبریز":     "Tabriz",
	"اهواز":     "Ahvaz",
	"کرج":       "Karaj",
	"قم":        "Qom",
	"کرمانشاه":  "Kermanshah",
	"ارومیه":    "Urmia",
	"رشت":       "Rasht",
	"زاهدان":    "Zahedan",
	"یزد":       "Yazd",
	"کرمان":     "Kerman",
	"همدان":     "Hamedan",
	"قزوین":     "Qazvin",
	"سنندج":     "Sanandaj",
	"بندرعباس":  "Bandar Abbas",
	"بندر عباس": "Bandar Abbas",
	"کازرون":    "Kazerun",
	"ساری":      "Sari",
	"گرگان":     "Gorgan",
	"بوشهر":     "Bushehr",
	"خرم آباد":  "Khorramabad",
	"خرم‌آباد":  "Khorramabad",
	"کیش":       "Kish",
	"قشم":       "Qeshm",
	"مازندران":  "Mazandaran",
	"گیلان":     "Gilan",
	"کاشان":     "Kashan",
	"اراک":      "Arak",
}

// arabicLetters folds Arabic code points users commonly type on Persian keyboards.
var arabicLetters = strings.NewReplacer("ي", "ی", "ى", "ی", "ك", "ک")

// ResolveCity returns the provider query for a user-supplied city name.
// Unknown names pass through trimmed, so English input works unchanged.
func ResolveCity(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	if alias, ok := cityAliases[arabicLetters.Replace(name)]; ok {
		return alias
	}
	return name
}

// cacheKey is the case-insensitive key a resolved city is cached under.
func cacheKey(query string) string {
	return strings.ToLower(query)
}
