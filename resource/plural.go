package resource

import (
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// PluralQuantity is an ICU plural category.
type PluralQuantity string

const (
	QuantityZero  PluralQuantity = "zero"
	QuantityOne   PluralQuantity = "one"
	QuantityTwo   PluralQuantity = "two"
	QuantityFew   PluralQuantity = "few"
	QuantityMany  PluralQuantity = "many"
	QuantityOther PluralQuantity = "other"
)

// Quantities lists every plural category in canonical order.
func Quantities() []PluralQuantity {
	return []PluralQuantity{QuantityZero, QuantityOne, QuantityTwo, QuantityFew, QuantityMany, QuantityOther}
}

// ParseQuantity maps a category name to its quantity. Unknown names map to other.
func ParseQuantity(s string) PluralQuantity {
	q := PluralQuantity(strings.ToLower(strings.TrimSpace(s)))
	switch q {
	case QuantityZero, QuantityOne, QuantityTwo, QuantityFew, QuantityMany, QuantityOther:
		return q
	default:
		return QuantityOther
	}
}

func (q PluralQuantity) String() string {
	return string(q)
}

// SelectionPolicy decides how a count picks a plural form.
type SelectionPolicy int

const (
	// PolicyLegacy matches 0, 1 and 2 literally then falls back to other,
	// then to the first stored form. few and many are never selected.
	PolicyLegacy SelectionPolicy = iota
	// PolicyCLDR applies the CLDR plural rules of the locale and falls back to
	// PolicyLegacy when the chosen category has no stored form.
	PolicyCLDR
)

// ParsePolicy accepts "legacy" or "cldr"; anything else is PolicyLegacy.
func ParsePolicy(s string) SelectionPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "cldr") {
		return PolicyCLDR
	}
	return PolicyLegacy
}

func (p SelectionPolicy) String() string {
	if p == PolicyCLDR {
		return "cldr"
	}
	return "legacy"
}

// ForQuantity picks the form for count with the legacy policy.
// It reports false only when the plural has no forms at all.
func (p Plural) ForQuantity(count int) (string, bool) {
	switch count {
	case 0:
		if text, ok := p.Lookup(QuantityZero); ok {
			return text, true
		}
	case 1:
		if text, ok := p.Lookup(QuantityOne); ok {
			return text, true
		}
	case 2:
		if text, ok := p.Lookup(QuantityTwo); ok {
			return text, true
		}
	}

	if text, ok := p.Lookup(QuantityOther); ok {
		return text, true
	}

	if len(p.Forms) == 0 {
		return "", false
	}
	return p.Forms[0].Text, true
}

// ForQuantityCLDR picks the form for count using the CLDR rules of locale.
func (p Plural) ForQuantityCLDR(count int, locale LocaleInfo) (string, bool) {
	tag := locale.Tag()
	if tag == language.Und {
		return p.ForQuantity(count)
	}

	msg := &i18n.Message{ID: p.Key}
	for _, f := range p.Forms {
		switch f.Quantity {
		case QuantityZero:
			msg.Zero = f.Text
		case QuantityOne:
			msg.One = f.Text
		case QuantityTwo:
			msg.Two = f.Text
		case QuantityFew:
			msg.Few = f.Text
		case QuantityMany:
			msg.Many = f.Text
		case QuantityOther:
			msg.Other = f.Text
		}
	}

	bundle := i18n.NewBundle(tag)
	if err := bundle.AddMessages(tag, msg); err != nil {
		return p.ForQuantity(count)
	}

	text, err := i18n.NewLocalizer(bundle, tag.String()).Localize(&i18n.LocalizeConfig{
		MessageID:   p.Key,
		PluralCount: count,
	})
	if err != nil || text == "" {
		return p.ForQuantity(count)
	}
	return text, true
}

// Select picks the form for count under policy.
func (p Plural) Select(count int, policy SelectionPolicy, locale LocaleInfo) (string, bool) {
	if policy == PolicyCLDR {
		return p.ForQuantityCLDR(count, locale)
	}
	return p.ForQuantity(count)
}
