// Package salestate keeps the long-lived per-brand sale cache and detects
// no-sale to on-sale transitions. The cache exists only for edge detection;
// current-state queries always come from a fresh scrape.
package salestate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jws1910/saleworker/internal/scraper"
	"github.com/jws1910/saleworker/logger"
)

// subscriberCacheSize bounds the per-cycle memo of subscriber lists.
const subscriberCacheSize = 512

// Status is the cached observation for one brand.
type Status struct {
	HasSale     bool
	LastChecked time.Time
	SaleURL     string
}

// Notification is one record written to the identity store for one
// (subscriber, transition) pair.
type Notification struct {
	SubscriberID string
	BrandKey     string
	BrandName    string
	SaleURL      string
	Title        string
	Message      string
	CreatedAt    time.Time
}

// Transition is the no-sale to on-sale edge for one brand.
type Transition struct {
	BrandKey       string    `json:"brandKey"`
	BrandName      string    `json:"brandName"`
	SaleURL        string    `json:"saleUrl"`
	SalePercentage string    `json:"salePercentage,omitempty"`
	At             time.Time `json:"at"`
}

// SubscriberStore answers "which subscribers favorite brand K" from the
// external identity store.
type SubscriberStore interface {
	SubscribersForBrand(ctx context.Context, brandKey string) ([]string, error)
}

// NotificationSink persists one notification record per subscriber.
type NotificationSink interface {
	WriteSaleNotification(ctx context.Context, n Notification) error
}

// TransitionPublisher pushes one event per transition to the event stream.
type TransitionPublisher interface {
	Publish(ctx context.Context, key string, message []byte) error
}

type entry struct {
	mu     sync.Mutex
	status Status
}

// Tracker holds per-brand sale state across cycles. Entries are created
// lazily on first observation and never deleted while the process runs;
// synchronization is brand-granular so unrelated brands never contend.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry

	store     SubscriberStore
	sink      NotificationSink
	publisher TransitionPublisher
	subCache  *lru.Cache[string, []string]
	metrics   *scraper.Metrics
	log       *logger.Logger
}

// NewTracker creates a tracker. store, sink and publisher may each be nil;
// the corresponding side effect is then skipped while edge detection keeps
// working.
func NewTracker(store SubscriberStore, sink NotificationSink, publisher TransitionPublisher, metrics *scraper.Metrics) *Tracker {
	subCache, _ := lru.New[string, []string](subscriberCacheSize)
	return &Tracker{
		entries:   make(map[string]*entry),
		store:     store,
		sink:      sink,
		publisher: publisher,
		subCache:  subCache,
		metrics:   metrics,
		log:       logger.ForDetector(),
	}
}

// ObserveCycle feeds a full cycle's results through edge detection and
// returns the transitions that fired. Side-effect failures are logged and
// swallowed; the cache is updated regardless.
func (t *Tracker) ObserveCycle(ctx context.Context, results []scraper.ScrapeResult) []Transition {
	t.subCache.Purge()

	var transitions []Transition
	for _, r := range results {
		if tr, fired := t.Observe(ctx, r); fired {
			transitions = append(transitions, tr)
		}
	}
	return transitions
}

// Observe compares one fresh result against the cached state. Only the
// no-sale to on-sale edge fires; the first observation of a brand and the
// on-sale to no-sale edge update silently.
func (t *Tracker) Observe(ctx context.Context, r scraper.ScrapeResult) (Transition, bool) {
	// An errored scrape is not an observation of sale state.
	if r.Error != "" {
		return Transition{}, false
	}

	e := t.entryFor(r.BrandKey)
	e.mu.Lock()
	first := e.status.LastChecked.IsZero()
	wasOnSale := e.status.HasSale

	e.status = Status{
		HasSale:     r.SaleFound,
		LastChecked: r.Timestamp,
		SaleURL:     r.BrandURL,
	}
	e.mu.Unlock()

	if first || wasOnSale || !r.SaleFound {
		return Transition{}, false
	}

	tr := Transition{
		BrandKey:       r.BrandKey,
		BrandName:      r.BrandName,
		SaleURL:        r.BrandURL,
		SalePercentage: r.SalePercentage,
		At:             time.Now(),
	}
	t.metrics.IncTransition()
	t.log.Info().
		Str("brand", r.BrandKey).
		Str("percentage", r.SalePercentage).
		Msg("Brand went on sale")

	t.notifySubscribers(ctx, r)
	t.publishTransition(ctx, tr)
	return tr, true
}

// Status returns the cached state for a brand.
func (t *Tracker) Status(brandKey string) (Status, bool) {
	t.mu.RLock()
	e, ok := t.entries[brandKey]
	t.mu.RUnlock()
	if !ok {
		return Status{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, true
}

func (t *Tracker) entryFor(brandKey string) *entry {
	t.mu.RLock()
	e, ok := t.entries[brandKey]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[brandKey]; ok {
		return e
	}
	e = &entry{}
	t.entries[brandKey] = e
	return e
}

func (t *Tracker) notifySubscribers(ctx context.Context, r scraper.ScrapeResult) {
	if t.store == nil || t.sink == nil {
		return
	}

	subscribers, err := t.subscribersFor(ctx, r.BrandKey)
	if err != nil {
		t.log.Error().Err(err).Str("brand", r.BrandKey).Msg("Subscriber lookup failed")
		return
	}

	for _, sub := range subscribers {
		n := Notification{
			SubscriberID: sub,
			BrandKey:     r.BrandKey,
			BrandName:    r.BrandName,
			SaleURL:      r.BrandURL,
			Title:        fmt.Sprintf("%s is on sale!", r.BrandName),
			Message:      notificationMessage(r),
			CreatedAt:    time.Now(),
		}
		if err := t.sink.WriteSaleNotification(ctx, n); err != nil {
			t.log.Error().Err(err).
				Str("brand", r.BrandKey).
				Str("subscriber", sub).
				Msg("Notification write failed")
			continue
		}
		t.metrics.IncNotification()
	}
}

func (t *Tracker) subscribersFor(ctx context.Context, brandKey string) ([]string, error) {
	if subs, ok := t.subCache.Get(brandKey); ok {
		return subs, nil
	}
	subs, err := t.store.SubscribersForBrand(ctx, brandKey)
	if err != nil {
		return nil, err
	}
	t.subCache.Add(brandKey, subs)
	return subs, nil
}

func (t *Tracker) publishTransition(ctx context.Context, tr Transition) {
	if t.publisher == nil {
		return
	}
	payload, err := json.Marshal(tr)
	if err != nil {
		t.log.Error().Err(err).Str("brand", tr.BrandKey).Msg("Transition marshal failed")
		return
	}
	if err := t.publisher.Publish(ctx, tr.BrandKey, payload); err != nil {
		t.log.Error().Err(err).Str("brand", tr.BrandKey).Msg("Transition publish failed")
	}
}

func notificationMessage(r scraper.ScrapeResult) string {
	if r.SalePercentage != "" {
		return fmt.Sprintf("%s has a sale on: up to %s%% off. Don't miss it!", r.BrandName, r.SalePercentage)
	}
	if r.SaleText != "" {
		return fmt.Sprintf("%s has a sale on: %s", r.BrandName, r.SaleText)
	}
	return fmt.Sprintf("%s has a sale on. Take a look!", r.BrandName)
}
