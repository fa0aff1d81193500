package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jws1910/saleworker/internal/events"
	"github.com/jws1910/saleworker/internal/salestate"
	"github.com/jws1910/saleworker/internal/scraper"
	"github.com/jws1910/saleworker/logger"
)

// SalesHandler triggers a full scrape cycle, either as one aggregate JSON
// document or as a stream of framed events.
type SalesHandler struct {
	Scheduler      *scraper.Scheduler
	Tracker        *salestate.Tracker
	Hub            *events.Hub
	DefaultCountry string
}

// aggregateFailure is the non-streaming total-failure shape: empty
// structures rather than a bare error, so clients always see the same
// document layout.
type aggregateFailure struct {
	Results     []scraper.ScrapeResult     `json:"results"`
	Categorized scraper.CategorizedResults `json:"categorizedResults"`
	Country     string                     `json:"country"`
	Timestamp   time.Time                  `json:"timestamp"`
	Error       string                     `json:"error"`
}

// Serve handles GET /api/sales?country=XX&stream=true|false.
func (h SalesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	country := strings.ToLower(r.URL.Query().Get("country"))
	if country == "" {
		country = h.DefaultCountry
	}

	// The cycle runs detached from the request context: a disconnecting
	// client stops emission, not in-flight fetches or cache updates.
	scrapeCtx := context.WithoutCancel(r.Context())

	if r.URL.Query().Get("stream") == "true" {
		h.serveStream(w, r, scrapeCtx, country)
		return
	}
	h.serveAggregate(w, scrapeCtx, country)
}

func (h SalesHandler) serveAggregate(w http.ResponseWriter, ctx context.Context, country string) {
	cycle, err := h.Scheduler.RunCycle(ctx, country, nil)
	if err != nil {
		logger.ForHTTP().Error().Err(err).Str("country", country).Msg("Scrape cycle failed")
		writeJSON(w, http.StatusInternalServerError, aggregateFailure{
			Results:     []scraper.ScrapeResult{},
			Categorized: scraper.NewCategorizedResults(),
			Country:     country,
			Timestamp:   time.Now(),
			Error:       "scrape cycle failed",
		})
		return
	}

	h.detectTransitions(ctx, cycle)
	writeJSON(w, http.StatusOK, cycle)
}

func (h SalesHandler) serveStream(w http.ResponseWriter, r *http.Request, ctx context.Context, country string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	emitter := newSSEEmitter(w, flusher, r.Context())
	cycle, err := h.Scheduler.RunCycle(ctx, country, emitter)
	if err != nil {
		// Once emission has begun the contract favors whatever was already
		// streamed over aborting; there is nothing more to send.
		logger.ForHTTP().Error().Err(err).Str("country", country).Msg("Streamed scrape cycle failed")
		return
	}

	h.detectTransitions(ctx, cycle)
}

// detectTransitions feeds a finished cycle through the change detector and
// broadcasts any transitions to live listeners.
func (h SalesHandler) detectTransitions(ctx context.Context, cycle scraper.CycleResult) {
	if h.Tracker == nil {
		return
	}
	for _, tr := range h.Tracker.ObserveCycle(ctx, cycle.Results) {
		if h.Hub != nil {
			h.Hub.Publish(events.Make("sale-transition", tr))
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ForHTTP().Error().Err(err).Msg("Response encode failed")
	}
}
