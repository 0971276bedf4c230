package price

// Item is one TGJU quote shown in a price list.
type Item struct {
	Key   string
	Label string
}

// Asset is a crypto asset with its USD and rial quote keys.
type Asset struct {
	Key    string // USD quote key; the rial quote is Key + "-irr"
	Name   string
	Symbol string
}

// GoldItems lists gold and coin quotes, priced in rial.
var GoldItems = []Item{
	{"geram18", "طلای ۱۸ عیار (هر گرم)"},
	{"geram24", "طلای ۲۴ عیار (هر گرم)"},
	{"mesghal", "مثقال طلا"},
	{"sekee", "سکه امامی"},
	{"sekeb", "سکه بهار آزادی"},
	{"nim", "نیم سکه"},
	{"rob", "ربع سکه"},
	{"gerami", "سکه گرمی"},
}

// OunceItem is the world gold ounce, priced in USD.
var OunceItem = Item{"ons", "اونس جهانی طلا"}

// CurrencyItems lists foreign currency quotes, priced in rial.
var CurrencyItems = []Item{
	{"price_dollar_rl", "دلار آمریکا"},
	{"price_eur", "یورو"},
	{"price_gbp", "پوند انگلیس"},
	{"price_aed", "درهم امارات"},
	{"price_try", "لیر ترکیه"},
	{"price_cny", "یوان چین"},
	{"price_sar", "ریال عربستان"},
	{"price_cad", "دلار کانادا"},
	{"price_aud", "دلار استرالیا"},
}

// CryptoAssets lists the crypto assets shown in the crypto price list.
var CryptoAssets = []Asset{
	{"crypto-bitcoin", "بیت‌کوین", "BTC"},
	{"crypto-ethereum", "اتریوم", "ETH"},
	{"crypto-tether", "تتر", "USDT"},
	{"crypto-binance-coin", "بایننس کوین", "BNB"},
	{"crypto-solana", "سولانا", "SOL"},
	{"crypto-ripple", "ریپل", "XRP"},
	{"crypto-cardano", "کاردانو", "ADA"},
	{"crypto-dogecoin", "دوج‌کوین", "DOGE"},
	{"crypto-toncoin", "تون‌کوین", "TON"},
	{"crypto-tron", "ترون", "TRX"},
	{"crypto-litecoin", "لایت‌کوین", "LTC"},
	{"crypto-chainlink", "چین‌لینک", "LINK"},
	{"crypto-polkadot", "پولکادات", "DOT"},
	{"crypto-avalanche", "آوالانچ", "AVAX"},
	{"crypto-monero", "مونرو", "XMR"},
}
