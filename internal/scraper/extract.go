package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jws1910/saleworker/catalog"
)

// Signal is the extractor's verdict for one page.
type Signal struct {
	SaleFound      bool
	SaleText       string
	SalePercentage string
	SaleCategory   string
}

// Extractor applies the heuristic sale classifier over page text nodes.
// It is stateless apart from the configured category keyword lists, so the
// same HTML always yields the same signal.
type Extractor struct {
	categories []catalog.Category
}

// NewExtractor creates an extractor classifying against the given ordered
// category list.
func NewExtractor(categories []catalog.Category) *Extractor {
	return &Extractor{categories: categories}
}

const textLengthCap = 300
const structuralCharCap = 5

// stateMarkers flag text nodes carrying embedded client-side state blobs,
// which are the main source of false positives on modern storefronts.
var stateMarkers = []string{
	"window.__INITIAL_STATE__",
	"__NEXT_DATA__",
	"window.__NUXT__",
	"__APOLLO_STATE__",
	"window.__PRELOADED_STATE__",
	"self.__next_f",
}

// saleIndicators are the generic sale words; any hit makes a node a sale
// candidate. Ordered data on purpose, not a dispatch table.
var saleIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsales?\b`),
	regexp.MustCompile(`(?i)\bdiscounts?\b`),
	regexp.MustCompile(`(?i)\boff\b`),
	regexp.MustCompile(`(?i)\bclearance\b`),
	regexp.MustCompile(`(?i)\breduc(?:ed|tions?)\b`),
	regexp.MustCompile(`(?i)\bmarkdowns?\b`),
}

// percentagePatterns are tried in order; the first match's captured number
// wins.
var percentagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)up\s+to\s+(\d{1,3})\s*%`),
	regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*off`),
	regexp.MustCompile(`(?i)save\s+up\s+to\s+(\d{1,3})\s*%`),
	regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*(?:discount|reduction|markdown)`),
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// stateFragment strips residual hydration blobs that leak into otherwise
	// visible text.
	stateFragment = regexp.MustCompile(`(?:window\.|self\.)?__[A-Za-z_]+__[^a-zA-Z]*(?:\{[^{}]*\})?`)
	jsonFragment  = regexp.MustCompile(`\{[^{}]{20,}\}`)
)

// Extract classifies raw HTML for sale signals.
func (e *Extractor) Extract(rawHTML string) Signal {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Signal{}
	}

	doc.Find("script, style, noscript").Remove()
	removeStateNodes(doc)

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var fallbackText string
	var found *Signal

	walkTextNodes(root, func(text string) bool {
		candidate := strings.TrimSpace(text)
		if !isCandidate(candidate) {
			return true
		}
		if !hasSaleIndicator(candidate) {
			return true
		}

		category := e.classify(candidate)
		percentage := extractPercentage(candidate)

		if category == "" && percentage == "" {
			// Generic sale word only. Remember the first such node and keep
			// scanning for something more specific.
			if fallbackText == "" {
				fallbackText = candidate
			}
			return true
		}

		if category == "" {
			category = catalog.CategoryOther
		}
		found = &Signal{
			SaleFound:      true,
			SaleText:       candidate,
			SalePercentage: percentage,
			SaleCategory:   category,
		}
		return false
	})

	if found == nil {
		if fallbackText == "" {
			return Signal{}
		}
		found = &Signal{
			SaleFound:    true,
			SaleText:     fallbackText,
			SaleCategory: catalog.CategoryOther,
		}
	}

	found.SaleText = cleanSaleText(found.SaleText)
	return *found
}

// removeStateNodes drops any element whose direct text carries a client-state
// marker. Only the element's own text nodes are inspected so that ancestors
// of a noisy node survive.
func removeStateNodes(doc *goquery.Document) {
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			for child := node.FirstChild; child != nil; child = child.NextSibling {
				if child.Type != html.TextNode {
					continue
				}
				if containsStateMarker(child.Data) {
					s.Remove()
					return
				}
			}
		}
	})
}

// walkTextNodes visits visible text nodes in document order until fn returns
// false.
func walkTextNodes(sel *goquery.Selection, fn func(text string) bool) {
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.TextNode {
			return fn(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if !walk(child) {
				return false
			}
		}
		return true
	}
	for _, node := range sel.Nodes {
		if !walk(node) {
			return
		}
	}
}

// isCandidate applies the exclusion filters in order.
func isCandidate(text string) bool {
	if text == "" {
		return false
	}
	if len(text) > textLengthCap {
		return false
	}
	if looksLikeCode(text) {
		return false
	}
	if containsStateMarker(text) {
		return false
	}
	return true
}

func looksLikeCode(text string) bool {
	if strings.Contains(text, "function(") || strings.Contains(text, "var ") {
		return true
	}
	return structuralCharCount(text) > structuralCharCap
}

func structuralCharCount(text string) int {
	count := 0
	for _, r := range text {
		switch r {
		case '{', '}', '[', ']', '"', ':', ';':
			count++
		}
	}
	return count
}

func containsStateMarker(text string) bool {
	for _, marker := range stateMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func hasSaleIndicator(text string) bool {
	for _, re := range saleIndicators {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// classify returns the first configured category with a keyword hit,
// configuration order, no scoring.
func (e *Extractor) classify(text string) string {
	lower := strings.ToLower(text)
	for _, cat := range e.categories {
		for _, keyword := range cat.Keywords {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				return cat.Key
			}
		}
	}
	return ""
}

func extractPercentage(text string) string {
	for _, re := range percentagePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// cleanSaleText normalizes a recorded snippet for end users, discarding it
// entirely when it still looks like code after cleaning.
func cleanSaleText(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = stateFragment.ReplaceAllString(text, "")
	text = jsonFragment.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if len(text) > textLengthCap || looksLikeCode(text) || containsStateMarker(text) {
		return ""
	}
	return text
}
