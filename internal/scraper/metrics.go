package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scrape pipeline.
type Metrics struct {
	Registry           *prometheus.Registry
	ScrapesTotal       *prometheus.CounterVec
	FetchDuration      prometheus.Histogram
	CycleDuration      prometheus.Histogram
	SalesFoundTotal    prometheus.Counter
	TransitionsTotal   prometheus.Counter
	NotificationsTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	scrapes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saleworker_scrapes_total",
			Help: "Brand scrapes by outcome (sale, no_sale, error, skipped).",
		},
		[]string{"outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "saleworker_fetch_duration_seconds",
			Help:    "Storefront fetch latency per brand.",
			Buckets: prometheus.DefBuckets,
		},
	)
	cycleDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "saleworker_cycle_duration_seconds",
			Help:    "Full scrape cycle duration.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)
	salesFound := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saleworker_sales_found_total",
			Help: "Total results with a detected sale.",
		},
	)
	transitions := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saleworker_sale_transitions_total",
			Help: "Total no-sale to on-sale transitions detected.",
		},
	)
	notifications := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saleworker_notifications_total",
			Help: "Total subscriber notification records written.",
		},
	)

	registry.MustRegister(scrapes, fetchDuration, cycleDuration, salesFound, transitions, notifications)

	return &Metrics{
		Registry:           registry,
		ScrapesTotal:       scrapes,
		FetchDuration:      fetchDuration,
		CycleDuration:      cycleDuration,
		SalesFoundTotal:    salesFound,
		TransitionsTotal:   transitions,
		NotificationsTotal: notifications,
	}
}

// ObserveScrape records one settled brand result.
func (m *Metrics) ObserveScrape(r ScrapeResult, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "no_sale"
	switch {
	case r.Error != "":
		outcome = "error"
	case r.SaleFound:
		outcome = "sale"
		m.SalesFoundTotal.Inc()
	}
	m.ScrapesTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(took.Seconds())
}

// ObserveSkip records a short-circuited brand.
func (m *Metrics) ObserveSkip() {
	if m == nil {
		return
	}
	m.ScrapesTotal.WithLabelValues("skipped").Inc()
}

// ObserveCycle records a completed cycle duration.
func (m *Metrics) ObserveCycle(took time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(took.Seconds())
}

// IncTransition records one detected sale-state transition.
func (m *Metrics) IncTransition() {
	if m == nil {
		return
	}
	m.TransitionsTotal.Inc()
}

// IncNotification records one written notification.
func (m *Metrics) IncNotification() {
	if m == nil {
		return
	}
	m.NotificationsTotal.Inc()
}
