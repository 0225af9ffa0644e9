package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a resource document.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown document format")

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// Document holds every resource of one locale.
type Document struct {
	Locale  string        `json:"locale"  toml:"locale"  yaml:"locale"`
	Values  []ValueEntry  `json:"values"  toml:"values"  yaml:"values"`
	Arrays  []ArrayEntry  `json:"arrays"  toml:"arrays"  yaml:"arrays"`
	Plurals []PluralEntry `json:"plurals" toml:"plurals" yaml:"plurals"`
}

type ValueEntry struct {
	Key         string `json:"key"         toml:"key"         yaml:"key"`
	Value       string `json:"value"       toml:"value"       yaml:"value"`
	Description string `json:"description" toml:"description" yaml:"description"`
}

type ArrayEntry struct {
	Key         string   `json:"key"         toml:"key"         yaml:"key"`
	Items       []string `json:"items"       toml:"items"       yaml:"items"`
	Description string   `json:"description" toml:"description" yaml:"description"`
}

// PluralEntry maps quantity names (zero, one, two, few, many, other) to text.
type PluralEntry struct {
	Key         string            `json:"key"         toml:"key"         yaml:"key"`
	Quantities  map[string]string `json:"quantities"  toml:"quantities"  yaml:"quantities"`
	Description string            `json:"description" toml:"description" yaml:"description"`
}

// Decode parses data in the given format.
func Decode(format Format, data []byte) (Document, error) {
	var (
		doc Document
		err error
	)
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		return doc, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	if err != nil {
		return doc, fmt.Errorf("decode %s document: %w", format, err)
	}
	return doc, nil
}
