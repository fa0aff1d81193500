// Package httpapi exposes the scrape trigger, the live event stream and the
// operational endpoints over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jws1910/saleworker/internal/events"
	"github.com/jws1910/saleworker/internal/salestate"
	"github.com/jws1910/saleworker/internal/scraper"
)

// Deps are the wired services the HTTP surface needs.
type Deps struct {
	Scheduler      *scraper.Scheduler
	Tracker        *salestate.Tracker
	Hub            *events.Hub
	Metrics        *scraper.Metrics
	DefaultCountry string
}

// NewRouter builds the chi router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))

	sales := SalesHandler{
		Scheduler:      deps.Scheduler,
		Tracker:        deps.Tracker,
		Hub:            deps.Hub,
		DefaultCountry: deps.DefaultCountry,
	}
	r.Get("/api/sales", sales.Serve)

	eventsHandler := EventsHandler{Hub: deps.Hub}
	r.Get("/api/events", eventsHandler.ServeSSE)

	return r
}
