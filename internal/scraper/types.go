package scraper

import (
	"time"

	"github.com/jws1910/saleworker/catalog"
)

// ScrapeResult is the single normalized outcome shape for one brand in one
// cycle. Exactly one is produced per brand, success or not.
type ScrapeResult struct {
	BrandKey       string    `json:"brandKey"`
	BrandName      string    `json:"brandName"`
	BrandURL       string    `json:"brandUrl"`
	SaleFound      bool      `json:"saleFound"`
	SaleText       string    `json:"saleText,omitempty"`
	SalePercentage string    `json:"salePercentage,omitempty"`
	SaleCategory   string    `json:"saleCategory,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// CategorizedResults maps category key to results in completion order.
// The "other" bucket is always present, possibly empty.
type CategorizedResults map[string][]ScrapeResult

// NewCategorizedResults creates an empty mapping with the catch-all bucket.
func NewCategorizedResults() CategorizedResults {
	return CategorizedResults{catalog.CategoryOther: {}}
}

// Add buckets a sale result by its category, falling back to "other".
func (cr CategorizedResults) Add(r ScrapeResult) {
	key := r.SaleCategory
	if key == "" {
		key = catalog.CategoryOther
	}
	cr[key] = append(cr[key], r)
}

// Snapshot returns a deep copy safe to hand to a listener while the cycle
// keeps appending.
func (cr CategorizedResults) Snapshot() CategorizedResults {
	out := make(CategorizedResults, len(cr))
	for key, bucket := range cr {
		copied := make([]ScrapeResult, len(bucket))
		copy(copied, bucket)
		out[key] = copied
	}
	return out
}

// CycleResult is the terminal payload of one full scrape cycle.
type CycleResult struct {
	Results     []ScrapeResult     `json:"results"`
	Categorized CategorizedResults `json:"categorizedResults"`
	Country     string             `json:"country"`
	Timestamp   time.Time          `json:"timestamp"`
}

// EventSink receives incremental cycle events in settlement order. The
// terminal OnComplete call is always last. Implementations must not block
// longer than they are willing to delay the cycle.
type EventSink interface {
	OnBrandResult(r ScrapeResult)
	OnCategorizedUpdate(cr CategorizedResults)
	OnComplete(c CycleResult)
}
