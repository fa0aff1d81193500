package worker

import (
	"context"
	"time"

	"github.com/jws1910/saleworker/internal/events"
	"github.com/jws1910/saleworker/internal/salestate"
	"github.com/jws1910/saleworker/internal/scraper"
	"github.com/jws1910/saleworker/logger"
	"github.com/jws1910/saleworker/services/publisher"
)

// Worker runs full scrape cycles on an interval and feeds the results
// through the sale-state change detector, so transitions fire even when no
// client is asking for current state.
type Worker struct {
	ctx       context.Context
	scheduler *scraper.Scheduler
	tracker   *salestate.Tracker
	hub       *events.Hub
	publisher publisher.Publisher
	country   string
	interval  time.Duration
	log       *logger.Logger
}

// NewWorker creates a worker. hub and publisher may be nil.
func NewWorker(
	ctx context.Context,
	scheduler *scraper.Scheduler,
	tracker *salestate.Tracker,
	hub *events.Hub,
	pub publisher.Publisher,
	country string,
	interval time.Duration,
) *Worker {
	return &Worker{
		ctx:       ctx,
		scheduler: scheduler,
		tracker:   tracker,
		hub:       hub,
		publisher: pub,
		country:   country,
		interval:  interval,
		log:       logger.ForWorker(),
	}
}

// Start runs scrape cycles until the context is canceled.
func (w *Worker) Start() error {
	for {
		start := time.Now()
		w.runCycle()
		w.log.Debug().Dur("took", time.Since(start)).Msg("Cycle finished")

		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case <-time.After(w.interval):
		}
	}
}

// runCycle runs one scrape cycle and fires transition side effects.
func (w *Worker) runCycle() {
	cycle, err := w.scheduler.RunCycle(w.ctx, w.country, nil)
	if err != nil {
		w.log.Error().Err(err).Msg("Scrape cycle failed")
		return
	}

	transitions := w.tracker.ObserveCycle(w.ctx, cycle.Results)
	for _, tr := range transitions {
		if w.hub != nil {
			w.hub.Publish(events.Make("sale-transition", tr))
		}
	}
	if len(transitions) > 0 {
		w.log.Info().Int("transitions", len(transitions)).Msg("Sale transitions detected")
	}

	// Keep the transition stream bounded after each cycle.
	if w.publisher != nil {
		if err := w.publisher.TrimStream(w.ctx); err != nil {
			w.log.Error().Err(err).Msg("Stream trimming failed")
		}
	}
}
