package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jws1910/saleworker/catalog"
	"github.com/jws1910/saleworker/helpers"
	"github.com/jws1910/saleworker/internal/events"
	"github.com/jws1910/saleworker/internal/salestate"
	"github.com/jws1910/saleworker/internal/scraper"
)

const testCatalog = `
brands:
  - {key: acme, name: Acme, url: "https://shops.test/acme"}
  - {key: globex, name: Globex, url: "https://shops.test/globex"}
categories:
  - {key: end-of-season, keywords: ["end of season"]}
`

func newTestDeps(t *testing.T) (Deps, func()) {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	fetcher := helpers.NewFetcher(15*time.Second, 1000)
	httpmock.ActivateNonDefault(fetcher.Client())
	httpmock.RegisterResponder(http.MethodGet, "https://shops.test/acme",
		httpmock.NewStringResponder(200, `<html><body><div>End of season sale, 40% off</div></body></html>`))
	httpmock.RegisterResponder(http.MethodGet, "https://shops.test/globex",
		httpmock.NewStringResponder(200, `<html><body><div>New arrivals</div></body></html>`))

	metrics := scraper.NewMetrics()
	orch := scraper.NewOrchestrator(fetcher, scraper.NewExtractor(cat.Categories), cat, nil, 0, metrics)
	deps := Deps{
		Scheduler:      scraper.NewScheduler(orch, cat, 5, 0, metrics),
		Tracker:        salestate.NewTracker(nil, nil, nil, metrics),
		Hub:            events.NewHub(),
		Metrics:        metrics,
		DefaultCountry: "uk",
	}
	return deps, httpmock.DeactivateAndReset
}

func TestHealthz(t *testing.T) {
	deps, cleanup := newTestDeps(t)
	defer cleanup()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAggregateResponseShape(t *testing.T) {
	deps, cleanup := newTestDeps(t)
	defer cleanup()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sales?country=FR")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Results     []scraper.ScrapeResult            `json:"results"`
		Categorized map[string][]scraper.ScrapeResult `json:"categorizedResults"`
		Country     string                            `json:"country"`
		Timestamp   time.Time                         `json:"timestamp"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "fr", body.Country, "country parameter is lowercased")
	require.Len(t, body.Results, 2)
	assert.Len(t, body.Categorized["end-of-season"], 1)
	_, hasOther := body.Categorized["other"]
	assert.True(t, hasOther, "fallback bucket is always present")
	assert.False(t, body.Timestamp.IsZero())
}

func TestAggregateDefaultCountry(t *testing.T) {
	deps, cleanup := newTestDeps(t)
	defer cleanup()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sales")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Country string `json:"country"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "uk", body.Country)
}

type sseEvent struct {
	name string
	data string
}

func readSSE(t *testing.T, r io.Reader) []sseEvent {
	t.Helper()
	var (
		out []sseEvent
		cur sseEvent
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if cur.name != "" || cur.data != "" {
				out = append(out, cur)
				cur = sseEvent{}
			}
		}
	}
	return out
}

func TestStreamEventSequence(t *testing.T) {
	deps, cleanup := newTestDeps(t)
	defer cleanup()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sales?stream=true")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	got := readSSE(t, resp.Body)
	require.NotEmpty(t, got)

	counts := make(map[string]int)
	for _, e := range got {
		counts[e.name]++
	}
	assert.Equal(t, 2, counts["brand-result"], "one event per brand")
	assert.Equal(t, 1, counts["categorized-update"], "one snapshot per sale")
	assert.Equal(t, 1, counts["complete"])
	assert.Equal(t, "complete", got[len(got)-1].name, "terminal event closes the stream")

	var terminal struct {
		Results []scraper.ScrapeResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(got[len(got)-1].data), &terminal))
	assert.Len(t, terminal.Results, 2, "terminal document carries the full cycle")
}

func TestStreamFiresTransitions(t *testing.T) {
	deps, cleanup := newTestDeps(t)
	defer cleanup()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	// Baseline: acme not on sale, so the scraped sale is an edge.
	deps.Tracker.Observe(context.Background(), scraper.ScrapeResult{
		BrandKey:  "acme",
		BrandName: "Acme",
		BrandURL:  "https://shops.test/acme",
		SaleFound: false,
		Timestamp: time.Now(),
	})

	sub := deps.Hub.Subscribe()
	defer deps.Hub.Unsubscribe(sub)

	resp, err := http.Get(srv.URL + "/api/sales")
	require.NoError(t, err)
	resp.Body.Close()

	select {
	case msg := <-sub:
		assert.Contains(t, msg, `"sale-transition"`)
		assert.Contains(t, msg, `"acme"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no transition reached the hub")
	}
}

func TestEventsEndpointSendsPing(t *testing.T) {
	deps, cleanup := newTestDeps(t)
	defer cleanup()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: message\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"ping"`)
}

func TestMetricsEndpoint(t *testing.T) {
	deps, cleanup := newTestDeps(t)
	defer cleanup()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "saleworker_sales_found_total")
	assert.Contains(t, string(body), "saleworker_cycle_duration_seconds")
}
