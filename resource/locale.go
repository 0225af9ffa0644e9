package resource

import (
	"strings"

	"golang.org/x/text/language"
)

const DefaultLanguage = "en"

// LocaleInfo identifies the language strings are resolved for.
// Two values are the same locale when their language codes are equal.
type LocaleInfo struct {
	Language string
}

// NewLocale builds a LocaleInfo from a raw language code without normalisation.
func NewLocale(code string) LocaleInfo {
	return LocaleInfo{Language: code}
}

// ParseLocale normalises tags such as "en-US", "EN_us" or "zh-Hant-TW" down to
// their base language. Input that is not a valid BCP 47 tag is lowercased and
// trimmed instead of being rejected.
func ParseLocale(raw string) LocaleInfo {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LocaleInfo{}
	}

	tag, err := language.Parse(raw)
	if err != nil {
		return LocaleInfo{Language: strings.ToLower(raw)}
	}

	base, _ := tag.Base()
	return LocaleInfo{Language: base.String()}
}

func (l LocaleInfo) String() string {
	return l.Language
}

// IsZero reports whether no language has been set.
func (l LocaleInfo) IsZero() bool {
	return l.Language == ""
}

// Tag returns the language tag for the locale, or language.Und when unknown.
func (l LocaleInfo) Tag() language.Tag {
	tag, err := language.Parse(l.Language)
	if err != nil {
		return language.Und
	}
	return tag
}

// Environment selects the locales a lookup is resolved against.
type Environment struct {
	Locale         string
	FallbackLocale string
}

// DefaultEnvironment resolves against English with English as fallback.
func DefaultEnvironment() Environment {
	return Environment{Locale: DefaultLanguage, FallbackLocale: DefaultLanguage}
}

// NewEnvironment builds an environment for a primary and fallback locale.
func NewEnvironment(locale, fallback LocaleInfo) Environment {
	return Environment{Locale: locale.Language, FallbackLocale: fallback.Language}
}

// HasFallback reports whether the fallback locale differs from the primary one.
func (e Environment) HasFallback() bool {
	return e.FallbackLocale != "" && e.FallbackLocale != e.Locale
}
