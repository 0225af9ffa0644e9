package locale

import (
	"os"
	"strings"

	"github.com/pitabwire/lingua/resource"
)

// environmentKeys are consulted in POSIX precedence order.
var environmentKeys = []string{"LC_ALL", "LC_MESSAGES", "LANG"}

// FromEnvironment returns a settable source starting at the locale of the
// process environment.
func FromEnvironment() *SettableSource {
	return NewSettableSource(DetectLocale(os.LookupEnv))
}

// DetectLocale reads LC_ALL, LC_MESSAGES and LANG in that order and returns
// the first usable locale. The C and POSIX locales carry no language and
// are skipped; when nothing usable is set the default language is returned.
func DetectLocale(lookup func(string) (string, bool)) resource.LocaleInfo {
	for _, key := range environmentKeys {
		raw, ok := lookup(key)
		if !ok {
			continue
		}
		if l, usable := parsePosixLocale(raw); usable {
			return l
		}
	}
	return resource.NewLocale(resource.DefaultLanguage)
}

// parsePosixLocale understands language[_territory][.codeset][@modifier].
func parsePosixLocale(raw string) (resource.LocaleInfo, bool) {
	value := strings.TrimSpace(raw)
	if i := strings.IndexAny(value, ".@"); i >= 0 {
		value = value[:i]
	}
	if value == "" || value == "C" || value == "POSIX" {
		return resource.LocaleInfo{}, false
	}

	l := resource.ParseLocale(strings.ReplaceAll(value, "_", "-"))
	return l, !l.IsZero()
}
