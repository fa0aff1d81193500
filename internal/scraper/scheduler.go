package scraper

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jws1910/saleworker/catalog"
	"github.com/jws1910/saleworker/logger"
)

// Scheduler runs full scrape cycles: fixed-size groups of concurrent brand
// scrapes, a cooldown between groups, and accumulation into categorized
// buckets. Results are appended in completion order within a group and
// catalog order across groups.
type Scheduler struct {
	orch      *Orchestrator
	catalog   *catalog.Catalog
	groupSize int
	cooldown  time.Duration
	metrics   *Metrics
	log       *logger.Logger
}

// NewScheduler creates a scheduler over the full brand catalog.
func NewScheduler(orch *Orchestrator, cat *catalog.Catalog, groupSize int, cooldown time.Duration, metrics *Metrics) *Scheduler {
	return &Scheduler{
		orch:      orch,
		catalog:   cat,
		groupSize: groupSize,
		cooldown:  cooldown,
		metrics:   metrics,
		log:       logger.ForScheduler(),
	}
}

// RunCycle scrapes every brand in the catalog for a country. sink may be nil
// for non-streaming callers; when set, it receives one event per settled
// brand, a categorized snapshot per new sale, and exactly one terminal event
// after everything else. Individual brand failures never fail the cycle.
func (s *Scheduler) RunCycle(ctx context.Context, country string, sink EventSink) (CycleResult, error) {
	start := time.Now()
	failed := NewFailedBrands()
	brands := s.catalog.Brands

	results := make([]ScrapeResult, 0, len(brands))
	categorized := NewCategorizedResults()

	groups := chunkBrands(brands, s.groupSize)
	s.log.Info().
		Str("country", country).
		Int("brands", len(brands)).
		Int("groups", len(groups)).
		Msg("Starting scrape cycle")

	for gi, group := range groups {
		settled := make(chan ScrapeResult, len(group))

		var g errgroup.Group
		for _, brand := range group {
			brand := brand
			g.Go(func() error {
				// Best-effort join: a failing brand settles as an
				// error-populated result, never as a group error.
				settled <- s.orch.ScrapeBrand(ctx, failed, brand, country)
				return nil
			})
		}

		// Drain in true completion order so streaming listeners see results
		// as they settle, not as they were launched.
		for range group {
			r := <-settled
			results = append(results, r)
			if sink != nil {
				sink.OnBrandResult(r)
			}
			if r.SaleFound {
				categorized.Add(r)
				if sink != nil {
					sink.OnCategorizedUpdate(categorized.Snapshot())
				}
			}
		}
		_ = g.Wait()

		// Cooldown after every group except the last.
		if gi < len(groups)-1 {
			select {
			case <-time.After(s.cooldown):
			case <-ctx.Done():
				return CycleResult{}, ctx.Err()
			}
		}
	}

	cycle := CycleResult{
		Results:     results,
		Categorized: categorized,
		Country:     country,
		Timestamp:   time.Now(),
	}
	if sink != nil {
		sink.OnComplete(cycle)
	}

	s.metrics.ObserveCycle(time.Since(start))
	s.log.Info().
		Str("country", country).
		Int("results", len(results)).
		Int("failed", failed.Len()).
		Dur("took", time.Since(start)).
		Msg("Scrape cycle complete")

	return cycle, nil
}

// chunkBrands partitions the catalog into consecutive fixed-size groups,
// preserving catalog order.
func chunkBrands(brands []catalog.Brand, size int) [][]catalog.Brand {
	if size <= 0 {
		size = 1
	}
	var groups [][]catalog.Brand
	for start := 0; start < len(brands); start += size {
		end := start + size
		if end > len(brands) {
			end = len(brands)
		}
		groups = append(groups, brands[start:end])
	}
	return groups
}
