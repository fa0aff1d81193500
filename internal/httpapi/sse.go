package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jws1910/saleworker/internal/events"
	"github.com/jws1910/saleworker/internal/scraper"
)

// sseEmitter streams cycle events to one client as they settle. It
// implements scraper.EventSink; once the client's context is done it drops
// events silently so the cycle can finish unobserved.
type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
}

var _ scraper.EventSink = (*sseEmitter)(nil)

func newSSEEmitter(w http.ResponseWriter, flusher http.Flusher, ctx context.Context) *sseEmitter {
	return &sseEmitter{w: w, flusher: flusher, ctx: ctx}
}

func (e *sseEmitter) emit(eventType string, payload any) {
	if e.ctx.Err() != nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", eventType, data)
	e.flusher.Flush()
}

// OnBrandResult emits one event per settled brand.
func (e *sseEmitter) OnBrandResult(r scraper.ScrapeResult) {
	e.emit("brand-result", r)
}

// OnCategorizedUpdate emits the full categorized snapshot after a new sale.
func (e *sseEmitter) OnCategorizedUpdate(cr scraper.CategorizedResults) {
	e.emit("categorized-update", cr)
}

// OnComplete emits the terminal event; the handler returning closes the stream.
func (e *sseEmitter) OnComplete(c scraper.CycleResult) {
	e.emit("complete", c)
}

// EventsHandler streams background-cycle sale transitions to any listener.
type EventsHandler struct {
	Hub *events.Hub
}

// ServeSSE handles GET /api/events.
func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(ch)

	ping := events.Make("ping", nil)
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", ping)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
