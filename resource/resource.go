// Package resource holds the localization data model: locales, lookup
// environments and the three kinds of string resources.
package resource

import "fmt"

// Kind distinguishes the storage namespace of a resource.
type Kind int

const (
	KindValue Kind = iota
	KindArray
	KindPlural
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindArray:
		return "array"
	case KindPlural:
		return "plural"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StringResource is a closed union over Value, Array and Plural.
// Callers switch on the concrete type:
//
//	switch r := res.(type) {
//	case Value:
//	case Array:
//	case Plural:
//	}
type StringResource interface {
	ResourceKey() string
	ResourceLocale() string
	Kind() Kind
	Description() string

	sealed()
}

// Value is a single translated string.
type Value struct {
	Key    string `json:"key"`
	Locale string `json:"locale"`
	Text   string `json:"value"`
	Desc   string `json:"description,omitempty"`
}

func (v Value) ResourceKey() string    { return v.Key }
func (v Value) ResourceLocale() string { return v.Locale }
func (v Value) Kind() Kind             { return KindValue }
func (v Value) Description() string    { return v.Desc }
func (Value) sealed()                  {}

// Array is an ordered list of strings; Items order is preserved by storage.
type Array struct {
	Key    string   `json:"key"`
	Locale string   `json:"locale"`
	Items  []string `json:"items"`
	Desc   string   `json:"description,omitempty"`
}

func (a Array) ResourceKey() string    { return a.Key }
func (a Array) ResourceLocale() string { return a.Locale }
func (a Array) Kind() Kind             { return KindArray }
func (a Array) Description() string    { return a.Desc }
func (Array) sealed()                  {}

// PluralForm is one quantity variant of a Plural.
type PluralForm struct {
	Quantity PluralQuantity `json:"quantity"`
	Text     string         `json:"value"`
}

// Plural maps plural quantities to strings. Forms keep insertion order.
type Plural struct {
	Key    string       `json:"key"`
	Locale string       `json:"locale"`
	Forms  []PluralForm `json:"forms"`
	Desc   string       `json:"description,omitempty"`
}

func (p Plural) ResourceKey() string    { return p.Key }
func (p Plural) ResourceLocale() string { return p.Locale }
func (p Plural) Kind() Kind             { return KindPlural }
func (p Plural) Description() string    { return p.Desc }
func (Plural) sealed()                  {}

// Lookup returns the text for q if that form exists.
func (p Plural) Lookup(q PluralQuantity) (string, bool) {
	for _, f := range p.Forms {
		if f.Quantity == q {
			return f.Text, true
		}
	}
	return "", false
}

// Set adds or replaces the form for q, keeping the original position on replace.
func (p *Plural) Set(q PluralQuantity, text string) {
	for i := range p.Forms {
		if p.Forms[i].Quantity == q {
			p.Forms[i].Text = text
			return
		}
	}
	p.Forms = append(p.Forms, PluralForm{Quantity: q, Text: text})
}

// Quantities returns the forms as a map.
func (p Plural) Quantities() map[PluralQuantity]string {
	out := make(map[PluralQuantity]string, len(p.Forms))
	for _, f := range p.Forms {
		out[f.Quantity] = f.Text
	}
	return out
}

// NewPlural builds a Plural from an ordered list of forms.
func NewPlural(key, locale string, forms ...PluralForm) Plural {
	p := Plural{Key: key, Locale: locale}
	for _, f := range forms {
		p.Set(f.Quantity, f.Text)
	}
	return p
}
