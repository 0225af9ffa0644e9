// Package importer loads resource documents (JSON, TOML or YAML) into a
// store. Existing entries are overwritten.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pitabwire/util"

	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
)

var ErrLocaleRequired = errors.New("document has no locale")

// Result counts what one document stored. Errors holds one entry per item
// that could not be stored.
type Result struct {
	Source  string
	Locale  string
	Values  int
	Arrays  int
	Plurals int
	Errors  []error
}

// Success reports whether every item was stored.
func (r Result) Success() bool {
	return len(r.Errors) == 0
}

// Total is the number of items stored.
func (r Result) Total() int {
	return r.Values + r.Arrays + r.Plurals
}

// Err joins the item errors, or returns nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Import writes every entry of doc to st.
func Import(ctx context.Context, st store.Store, doc Document) Result {
	code := resource.ParseLocale(doc.Locale).String()
	res := Result{Locale: code}
	if code == "" {
		res.Errors = append(res.Errors, ErrLocaleRequired)
		return res
	}

	for _, entry := range doc.Values {
		err := st.UpsertValue(ctx, resource.Value{
			Key: entry.Key, Locale: code, Text: entry.Value, Desc: entry.Description,
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("value %q: %w", entry.Key, err))
			continue
		}
		res.Values++
	}

	for _, entry := range doc.Arrays {
		items := entry.Items
		if items == nil {
			items = []string{}
		}
		err := upsertArray(ctx, st, resource.Array{
			Key: entry.Key, Locale: code, Items: items, Desc: entry.Description,
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("array %q: %w", entry.Key, err))
			continue
		}
		res.Arrays++
	}

	for _, entry := range doc.Plurals {
		if err := upsertPlural(ctx, st, pluralFromEntry(code, entry)); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("plural %q: %w", entry.Key, err))
			continue
		}
		res.Plurals++
	}

	util.Log(ctx).WithFields(map[string]any{
		"locale":  code,
		"values":  res.Values,
		"arrays":  res.Arrays,
		"plurals": res.Plurals,
		"errors":  len(res.Errors),
	}).Debug("document imported")
	return res
}

// pluralFromEntry orders forms canonically. An unrecognised quantity name is
// stored as other unless other is given explicitly.
func pluralFromEntry(code string, entry PluralEntry) resource.Plural {
	plural := resource.Plural{Key: entry.Key, Locale: code, Desc: entry.Description}

	known := map[resource.PluralQuantity]string{}
	var unknown []string
	for name, text := range entry.Quantities {
		norm := strings.ToLower(strings.TrimSpace(name))
		if q := resource.ParseQuantity(norm); q.String() == norm {
			known[q] = text
			continue
		}
		unknown = append(unknown, name)
	}

	for _, q := range resource.Quantities() {
		if text, ok := known[q]; ok {
			plural.Set(q, text)
		}
	}

	if _, ok := known[resource.QuantityOther]; !ok && len(unknown) > 0 {
		slices.Sort(unknown)
		plural.Set(resource.QuantityOther, entry.Quantities[unknown[0]])
	}
	return plural
}

func upsertArray(ctx context.Context, st store.Store, array resource.Array) error {
	err := st.InsertArray(ctx, array)
	if errors.Is(err, store.ErrAlreadyExists) {
		return st.UpdateArray(ctx, array)
	}
	return err
}

func upsertPlural(ctx context.Context, st store.Store, plural resource.Plural) error {
	err := st.InsertPlural(ctx, plural)
	if errors.Is(err, store.ErrAlreadyExists) {
		return st.UpdatePlural(ctx, plural)
	}
	return err
}

// ImportBytes decodes data and imports it.
func ImportBytes(ctx context.Context, st store.Store, format Format, data []byte) (Result, error) {
	doc, err := Decode(format, data)
	if err != nil {
		return Result{}, err
	}
	return Import(ctx, st, doc), nil
}

// ImportFile imports the document at path, choosing the format from its
// extension.
func ImportFile(ctx context.Context, st store.Store, path string) (Result, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Result{Source: path}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Source: path}, fmt.Errorf("read %s: %w", path, err)
	}

	res, err := ImportBytes(ctx, st, format, data)
	res.Source = path
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// ImportDir imports every document below dir. Files with other extensions
// are skipped. It stops at the first file that cannot be read or decoded.
func ImportDir(ctx context.Context, st store.Store, dir string) ([]Result, error) {
	var results []Result
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ferr := FormatFromPath(path); ferr != nil {
			return nil
		}

		res, ierr := ImportFile(ctx, st, path)
		if ierr != nil {
			return ierr
		}
		results = append(results, res)
		return nil
	})
	return results, err
}
