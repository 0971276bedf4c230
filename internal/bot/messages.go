package bot

// User-facing texts. The router is the only place errors become user text.
const (
	msgWelcome = "🤖 به ربات هوشمند «کیارش» خوش آمدید!\n\n" +
		"من اینجا هستم تا کارهای روزمره‌ت رو سریع‌تر و راحت‌تر کنم. با کیارش می‌تونی به کلی امکانات در یک جا دسترسی داشته باشی:\n\n" +
		"💰 استعلام قیمت‌ها: مشاهده لحظه‌ای قیمت دلار، یورو و انواع طلا و سکه.\n\n" +
		"🧠 هوش مصنوعی: گفتگو، پرسش و پاسخ، و حل مسائل با قدرت AI.\n\n" +
		"🌤️ آب و هوا: چک کردن وضعیت جوی و پیش‌بینی هوای تمام شهرهای ایران و جهان.\n\n" +
		"همین حالا یکی از دکمه‌ها رو بزن تا با هم شروع کنیم! 👇"
	msgMainMenu = "منوی اصلی 👇"

	msgDefaultPrompt = "برای شروع یکی از دکمه‌ها را انتخاب کن یا /start بزن."
	msgExpired       = "⌛️ این دکمه منقضی شده است. از منوی اصلی دوباره شروع کن."
	msgInternalError = "❌ خطایی رخ داد. لطفاً دوباره تلاش کنید."

	msgHelp = "📖 راهنمای کیارش\n\n" +
		"🌤️ آب و هوا:\n" +
		"   /weather شهر — وضعیت فعلی، مثال: /weather تهران\n" +
		"   /forecast شهر روز ماه [سال] — پیش‌بینی، مثال: /forecast شیراز ۱۹ بهمن\n\n" +
		"💰 قیمت‌ها: از دکمه «قیمت طلا و دلار» طلا، ارز یا رمز ارز را انتخاب کن.\n\n" +
		"🤖 هوش مصنوعی: دکمه «هوش مصنوعی» را بزن و سوالت را بنویس.\n\n" +
		"⬅️ هر زمان با /start یا «بازگشت» به منوی اصلی برمی‌گردی."

	msgWeatherMenu = "🌤️ بخش آب و هوا\n\n" +
		"📍 دمای فعلی: وضعیت همین الان یک شهر.\n" +
		"📅 پیش‌بینی: وضعیت یک شهر در یکی از روزهای آینده.\n\n" +
		"می‌تونی مستقیم هم بنویسی: /weather شیراز یا /forecast شیراز ۱۸ بهمن"
	msgPickCity     = "🏙 شهر مورد نظر را انتخاب کن یا نامش را بنویس:"
	msgPickCityDate = "🏙 شهر را انتخاب کن یا بنویس (مثل «شیراز») یا همه را با هم بنویس: شیراز ۱۸ بهمن"
	msgPickDate     = "📅 پیش‌بینی %s برای چه روزی؟ یکی از روزها را انتخاب کن یا بنویس، مثل: ۱۸ بهمن"

	msgWeatherUsage  = "لطفا نام شهر را بعد از دستور /weather مثل /weather تهران  وارد کنید"
	msgForecastUsage = "فرمت درست: /forecast شهر روز ماه\nمثال: /forecast شیراز ۱۹ بهمن"

	msgCityNotFound    = "هیچ داده ای برای این شهر یافت نشد"
	msgDateUnavailable = "برای این تاریخ پیش بینی در دسترس نیست (فقط چند روز آینده)."
	msgWeatherFailed   = "⚠️ دریافت اطلاعات آب و هوا ممکن نشد. لطفاً کمی بعد دوباره تلاش کنید."

	msgPriceMenu   = "💰 کدام قیمت‌ها را می‌خواهی ببینی؟"
	msgPriceFailed = "❌ خطا در دریافت اطلاعات. لطفاً دوباره تلاش کنید."
	msgPriceEmpty  = "هیچ داده‌ای دریافت نشد."

	msgAIIntro = "🧠 بخش هوش مصنوعی کیارش\n\n" +
		"من اینجا هستم تا مثل یک دستیار هوشمند در کنارت باشم. هر سوالی داری، از مسائل درسی و برنامه‌نویسی گرفته تا مشورت برای کارهای روزمره، فقط کافیه برام بنویسی!\n\n" +
		"چه کارهایی می‌تونم انجام بدم؟\n\n" +
		"🚀 پاسخ به سوالات: هر چیزی که برات سواله رو بپرس.\n\n" +
		"💻 کمک در کدنویسی: اگر توی پروژه‌هات به مشکل خوردی، روی من حساب کن.\n\n" +
		"✍️ نوشتن متن: از ایمیل رسمی تا کپشن اینستاگرام رو برات می‌نویسم.\n\n" +
		"💡 ایده‌پردازی: برای پروژه‌ها یا کارهای شخصیت بهت ایده میدم."
	msgAIDisabled = "🤖 بخش هوش مصنوعی فعلاً در دسترس نیست."
	msgAIFailed   = "متاسفانه مشکلی در ارتباط با مغز هوش مصنوعی پیش آمد. 🤕"
	msgAIQuota    = "⏳ سهمیه استفاده از هوش مصنوعی فعلاً تمام شده است.\n" +
		"📊 سهمیه باقی‌مانده امروز: %s پیام\n" +
		"لطفاً کمی بعد دوباره امتحان کن. بقیه امکانات ربات همچنان در دسترس است."

	msgFlooded = "⏳ تعداد پیام‌های شما بیش از حد مجاز است.\n" +
		"لطفاً %s دقیقه و %s ثانیه دیگر دوباره تلاش کنید."

	msgJoinWelcome = "👋 سلام %s! به گروه خوش اومدی. برای شروع می‌تونی /start رو بزن و با امکانات ربات آشنا شو."
	defaultName    = "دوست عزیز"
)
