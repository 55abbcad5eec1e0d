// Package catalog holds the fixed schema of canonical attributes that is
// seeded into the registry at process start.
package catalog

import (
	"bytes"
	_ "embed"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
)

//go:embed canonical.yaml
var canonicalYAML []byte

// Entry is one canonical attribute definition with its options.
type Entry struct {
	Key       string           `yaml:"key"`
	Title     string           `yaml:"title"`
	Scope     string           `yaml:"scope"`
	ValueType domain.ValueType `yaml:"value_type"`
	IsPrimary bool             `yaml:"is_primary"`
	Options   []OptionEntry    `yaml:"options"`
}

type OptionEntry struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

type Catalog struct {
	Attributes []Entry `yaml:"attributes"`
}

// Keys returns the catalog keys in declaration order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.Attributes))
	for i, e := range c.Attributes {
		keys[i] = e.Key
	}
	return keys
}

// Default returns the embedded canonical catalog.
func Default() *Catalog {
	c, err := Parse(canonicalYAML)
	if err != nil {
		panic("embedded catalog: " + err.Error())
	}
	return c
}

// Load reads a catalog file, or returns the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks keys, value types and option codes.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Attributes))
	for i, e := range c.Attributes {
		if e.Key == "" || strings.Trim(e.Key, "abcdefghijklmnopqrstuvwxyz0123456789_") != "" {
			return errors.Newf("catalog entry %d: key %q is not snake_case", i, e.Key)
		}
		if seen[e.Key] {
			return errors.Newf("catalog entry %d: duplicate key %q", i, e.Key)
		}
		seen[e.Key] = true

		if !e.ValueType.Valid() {
			return errors.Newf("catalog entry %q: unknown value_type %q", e.Key, e.ValueType)
		}
		if e.Title == "" {
			return errors.Newf("catalog entry %q: empty title", e.Key)
		}
		if len(e.Options) > 0 && e.ValueType != domain.ValueTypeEnum {
			return errors.Newf("catalog entry %q: options on %s attribute", e.Key, e.ValueType)
		}

		codes := make(map[string]bool, len(e.Options))
		for _, o := range e.Options {
			if o.Code == "" {
				return errors.Newf("catalog entry %q: option with empty code", e.Key)
			}
			if codes[o.Code] {
				return errors.Newf("catalog entry %q: duplicate option code %q", e.Key, o.Code)
			}
			codes[o.Code] = true
		}
	}
	return nil
}
