package content

import "strings"

// Locale is a supported site language.
type Locale string

const (
	English Locale = "en"
	Arabic  Locale = "ar"
)

// Locales lists supported locales in menu order.
var Locales = []Locale{English, Arabic}

// ParseLocale accepts "en"/"ar" in any case.
func ParseLocale(s string) (Locale, bool) {
	switch Locale(strings.ToLower(strings.TrimSpace(s))) {
	case English:
		return English, true
	case Arabic:
		return Arabic, true
	}
	return "", false
}

// Dir is the HTML text direction for the locale.
func (l Locale) Dir() string {
	if l == Arabic {
		return "rtl"
	}
	return "ltr"
}

// Other returns the alternate locale for the language switcher.
func (l Locale) Other() Locale {
	if l == Arabic {
		return English
	}
	return Arabic
}

// Localized holds one field in both languages.
type Localized struct {
	En string `json:"en"`
	Ar string `json:"ar"`
}

// Get returns the value for l; an empty Arabic value falls back to English.
func (t Localized) Get(l Locale) string {
	if l == Arabic && strings.TrimSpace(t.Ar) != "" {
		return t.Ar
	}
	return t.En
}

func (t Localized) trim() Localized {
	return Localized{En: strings.TrimSpace(t.En), Ar: strings.TrimSpace(t.Ar)}
}
