package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/jws1910/saleworker/catalog"
	"github.com/jws1910/saleworker/helpers"
	"github.com/jws1910/saleworker/logger"
	apperr "github.com/jws1910/saleworker/pkg/errors"
	"github.com/jws1910/saleworker/services/cache"
)

// blockedMessage is the error surfaced for brands that are never contacted.
const blockedMessage = "Website blocks automated requests"

// Orchestrator composes fetcher and extractor for one brand and normalizes
// every outcome into a ScrapeResult. It never returns an error: per-brand
// failures are data, not control flow.
type Orchestrator struct {
	fetcher   *helpers.Fetcher
	extractor *Extractor
	catalog   *catalog.Catalog
	blocks    cache.CacheService
	blockTTL  time.Duration
	metrics   *Metrics
}

// NewOrchestrator creates an orchestrator. blocks may be nil to disable
// cross-cycle block marks.
func NewOrchestrator(
	fetcher *helpers.Fetcher,
	extractor *Extractor,
	cat *catalog.Catalog,
	blocks cache.CacheService,
	blockTTL time.Duration,
	metrics *Metrics,
) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		catalog:   cat,
		blocks:    blocks,
		blockTTL:  blockTTL,
		metrics:   metrics,
	}
}

// ScrapeBrand produces exactly one result for a brand. Brands on the static
// denylist, already failed this cycle, or block-marked from an earlier cycle
// are short-circuited without a network call.
func (o *Orchestrator) ScrapeBrand(ctx context.Context, failed *FailedBrands, brand catalog.Brand, country string) ScrapeResult {
	url := o.catalog.URLFor(brand.Key, country)
	result := ScrapeResult{
		BrandKey:  brand.Key,
		BrandName: brand.Name,
		BrandURL:  url,
		Timestamp: time.Now(),
	}

	if o.catalog.IsBlocked(brand.Key) || failed.Contains(brand.Key) || o.blockMarked(brand.Key) {
		result.Error = blockedMessage
		o.metrics.ObserveSkip()
		return result
	}

	log := logger.ForBrand(brand.Key)

	start := time.Now()
	body, err := o.fetcher.Fetch(ctx, brand.Key, url)
	if err != nil {
		failed.Add(brand.Key)
		result.Error = errorMessage(err)

		var fe *apperr.FetchError
		if errors.As(err, &fe) && fe.IsBlocking() {
			o.setBlockMark(brand.Key)
		}
		log.Debug().Err(err).Msg("Fetch failed")
		o.metrics.ObserveScrape(result, time.Since(start))
		return result
	}

	signal := o.extractor.Extract(body)
	result.SaleFound = signal.SaleFound
	result.SaleText = signal.SaleText
	result.SalePercentage = signal.SalePercentage
	result.SaleCategory = signal.SaleCategory

	if result.SaleFound {
		log.Debug().
			Str("category", result.SaleCategory).
			Str("percentage", result.SalePercentage).
			Msg("Sale detected")
	}
	o.metrics.ObserveScrape(result, time.Since(start))
	return result
}

func (o *Orchestrator) blockMarked(brandKey string) bool {
	if o.blocks == nil {
		return false
	}
	_, err := o.blocks.Get(cache.BlockKey(brandKey))
	return err == nil
}

func (o *Orchestrator) setBlockMark(brandKey string) {
	if o.blocks == nil || o.blockTTL <= 0 {
		return
	}
	if err := o.blocks.Set(cache.BlockKey(brandKey), []byte("1"), o.blockTTL); err != nil {
		logger.ForBrand(brandKey).Debug().Err(err).Msg("Failed to set block mark")
	}
}

func errorMessage(err error) string {
	var fe *apperr.FetchError
	if errors.As(err, &fe) {
		return fe.Message()
	}
	return "Network error while contacting website"
}
