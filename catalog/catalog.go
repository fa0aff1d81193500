// Package catalog loads the static brand catalog: the retailers the worker
// monitors, the sale category keyword lists, per-country URL overrides, and
// the denylist of sites known to reject automated requests. The catalog is
// loaded once at startup and is immutable afterwards.
package catalog

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jws1910/saleworker/pkg/errors"
)

// CategoryOther is the catch-all bucket for sales that match a generic
// indicator but no configured category keyword.
const CategoryOther = "other"

// Brand is one monitored retailer.
type Brand struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Category is an ordered keyword list used by the extractor's classifier.
// Category order in the file is classification priority; first match wins.
type Category struct {
	Key      string   `yaml:"key"`
	Keywords []string `yaml:"keywords"`
}

// Catalog is the full static configuration.
type Catalog struct {
	Brands     []Brand                      `yaml:"brands"`
	Categories []Category                   `yaml:"categories"`
	Countries  map[string]map[string]string `yaml:"countries"`
	Blocked    []string                     `yaml:"blocked"`

	blocked map[string]struct{}
	byKey   map[string]Brand
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration("read catalog file", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.NewConfiguration("parse catalog file", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	c.byKey = make(map[string]Brand, len(c.Brands))
	for _, b := range c.Brands {
		c.byKey[b.Key] = b
	}
	c.blocked = make(map[string]struct{}, len(c.Blocked))
	for _, key := range c.Blocked {
		c.blocked[key] = struct{}{}
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Brands) == 0 {
		return errors.NewConfiguration("catalog has no brands", nil)
	}
	seen := make(map[string]struct{}, len(c.Brands))
	for _, b := range c.Brands {
		if b.Key == "" || b.Name == "" || b.URL == "" {
			return errors.NewConfiguration("brand entries need key, name and url", nil)
		}
		if _, dup := seen[b.Key]; dup {
			return errors.NewConfiguration("duplicate brand key: "+b.Key, nil)
		}
		seen[b.Key] = struct{}{}
	}
	for _, cat := range c.Categories {
		if cat.Key == "" {
			return errors.NewConfiguration("category entries need a key", nil)
		}
		if cat.Key == CategoryOther {
			return errors.NewConfiguration("category key 'other' is reserved", nil)
		}
		if len(cat.Keywords) == 0 {
			return errors.NewConfiguration("category "+cat.Key+" has no keywords", nil)
		}
	}
	for country, overrides := range c.Countries {
		for key := range overrides {
			found := false
			for _, b := range c.Brands {
				if b.Key == key {
					found = true
					break
				}
			}
			if !found {
				return errors.NewConfiguration("country "+country+" overrides unknown brand "+key, nil)
			}
		}
	}
	return nil
}

// Brand returns the brand for a key.
func (c *Catalog) Brand(key string) (Brand, bool) {
	b, ok := c.byKey[key]
	return b, ok
}

// URLFor returns the storefront URL for a brand in a country, falling back to
// the canonical URL when no override exists.
func (c *Catalog) URLFor(key, country string) string {
	country = strings.ToLower(country)
	if overrides, ok := c.Countries[country]; ok {
		if url, ok := overrides[key]; ok {
			return url
		}
	}
	if b, ok := c.byKey[key]; ok {
		return b.URL
	}
	return ""
}

// IsBlocked reports whether a brand is on the static denylist.
func (c *Catalog) IsBlocked(key string) bool {
	_, ok := c.blocked[key]
	return ok
}
