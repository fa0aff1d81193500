package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
brands:
  - key: acme
    name: Acme
    url: https://acme.example.com/
  - key: blocked-shop
    name: Blocked Shop
    url: https://blocked.example.com/
categories:
  - key: flash-sale
    keywords: ["flash", "today only"]
  - key: end-of-season
    keywords: ["end of season", "season"]
countries:
  fr:
    acme: https://acme.example.fr/soldes
blocked:
  - blocked-shop
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(testCatalog))
	require.NoError(t, err)

	assert.Len(t, c.Brands, 2)
	assert.Equal(t, "acme", c.Brands[0].Key, "catalog order should be preserved")

	b, ok := c.Brand("acme")
	assert.True(t, ok)
	assert.Equal(t, "Acme", b.Name)

	_, ok = c.Brand("nope")
	assert.False(t, ok)
}

func TestCategoryOrderPreserved(t *testing.T) {
	c, err := Parse([]byte(testCatalog))
	require.NoError(t, err)

	require.Len(t, c.Categories, 2)
	assert.Equal(t, "flash-sale", c.Categories[0].Key)
	assert.Equal(t, "end-of-season", c.Categories[1].Key)
}

func TestURLFor(t *testing.T) {
	c, err := Parse([]byte(testCatalog))
	require.NoError(t, err)

	assert.Equal(t, "https://acme.example.fr/soldes", c.URLFor("acme", "fr"))
	assert.Equal(t, "https://acme.example.fr/soldes", c.URLFor("acme", "FR"), "country codes are case-insensitive")
	assert.Equal(t, "https://acme.example.com/", c.URLFor("acme", "uk"), "missing override falls back to canonical URL")
	assert.Equal(t, "https://blocked.example.com/", c.URLFor("blocked-shop", "fr"))
	assert.Equal(t, "", c.URLFor("nope", "fr"))
}

func TestIsBlocked(t *testing.T) {
	c, err := Parse([]byte(testCatalog))
	require.NoError(t, err)

	assert.True(t, c.IsBlocked("blocked-shop"))
	assert.False(t, c.IsBlocked("acme"))
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty brands", `brands: []`},
		{"missing url", "brands:\n  - key: a\n    name: A"},
		{"duplicate key", "brands:\n  - {key: a, name: A, url: u}\n  - {key: a, name: B, url: v}"},
		{"reserved category", "brands:\n  - {key: a, name: A, url: u}\ncategories:\n  - {key: other, keywords: [x]}"},
		{"empty keywords", "brands:\n  - {key: a, name: A, url: u}\ncategories:\n  - {key: c, keywords: []}"},
		{"unknown override", "brands:\n  - {key: a, name: A, url: u}\ncountries:\n  fr:\n    b: v"},
		{"not yaml", `{{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}
