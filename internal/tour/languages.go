package tour

// Language is a language offered for narration and navigation.
type Language struct {
	Code string
	Name string
	Flag string
}

// SupportedLanguages lists the language codes clients may request.
// Content lookups for other codes still succeed through the fallback.
func SupportedLanguages() []Language {
	return []Language{
		{Code: "en", Name: "English", Flag: "🇬🇧"},
		{Code: "nl", Name: "Nederlands", Flag: "🇳🇱"},
		{Code: "si", Name: "සිංහල", Flag: "🇱🇰"},
		{Code: "ta", Name: "தமிழ்", Flag: "🇱🇰"},
		{Code: "ja", Name: "日本語", Flag: "🇯🇵"},
		{Code: "zh", Name: "中文", Flag: "🇨🇳"},
		{Code: "es", Name: "Español", Flag: "🇪🇸"},
		{Code: "fr", Name: "Français", Flag: "🇫🇷"},
		{Code: "de", Name: "Deutsch", Flag: "🇩🇪"},
		{Code: "it", Name: "Italiano", Flag: "🇮🇹"},
		{Code: "pt", Name: "Português", Flag: "🇵🇹"},
		{Code: "ru", Name: "Русский", Flag: "🇷🇺"},
		{Code: "ar", Name: "العربية", Flag: "🇸🇦"},
		{Code: "hi", Name: "हिन्दी", Flag: "🇮🇳"},
		{Code: "th", Name: "ไทย", Flag: "🇹🇭"},
		{Code: "ko", Name: "한국어", Flag: "🇰🇷"},
	}
}
