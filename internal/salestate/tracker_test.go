package salestate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jws1910/saleworker/internal/scraper"
)

type mockSubscriberStore struct {
	subscribers map[string][]string
	err         error
	calls       int
}

func (m *mockSubscriberStore) SubscribersForBrand(_ context.Context, brandKey string) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.subscribers[brandKey], nil
}

type mockNotificationSink struct {
	written []Notification
	err     error
}

func (m *mockNotificationSink) WriteSaleNotification(_ context.Context, n Notification) error {
	if m.err != nil {
		return m.err
	}
	m.written = append(m.written, n)
	return nil
}

type mockPublisher struct {
	keys     []string
	payloads [][]byte
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, key string, message []byte) error {
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	m.payloads = append(m.payloads, message)
	return nil
}

func result(key string, onSale bool) scraper.ScrapeResult {
	return scraper.ScrapeResult{
		BrandKey:       key,
		BrandName:      "Brand " + key,
		BrandURL:       "https://shops.test/" + key,
		SaleFound:      onSale,
		SalePercentage: "40",
		Timestamp:      time.Now(),
	}
}

func TestFirstObservationIsSilent(t *testing.T) {
	tracker := NewTracker(nil, nil, nil, nil)

	_, fired := tracker.Observe(context.Background(), result("acme", true))
	assert.False(t, fired, "first sighting establishes a baseline, never a transition")

	status, ok := tracker.Status("acme")
	require.True(t, ok)
	assert.True(t, status.HasSale)
	assert.False(t, status.LastChecked.IsZero())
}

func TestNoSaleToOnSaleFires(t *testing.T) {
	store := &mockSubscriberStore{subscribers: map[string][]string{"acme": {"u1", "u2"}}}
	sink := &mockNotificationSink{}
	pub := &mockPublisher{}
	tracker := NewTracker(store, sink, pub, nil)
	ctx := context.Background()

	_, fired := tracker.Observe(ctx, result("acme", false))
	assert.False(t, fired)

	tr, fired := tracker.Observe(ctx, result("acme", true))
	require.True(t, fired)
	assert.Equal(t, "acme", tr.BrandKey)
	assert.Equal(t, "40", tr.SalePercentage)

	require.Len(t, sink.written, 2, "one notification per subscriber")
	assert.Equal(t, "u1", sink.written[0].SubscriberID)
	assert.Equal(t, "Brand acme is on sale!", sink.written[0].Title)
	assert.Contains(t, sink.written[0].Message, "up to 40% off")

	require.Len(t, pub.payloads, 1)
	var published Transition
	require.NoError(t, json.Unmarshal(pub.payloads[0], &published))
	assert.Equal(t, "acme", published.BrandKey)
	assert.Equal(t, "https://shops.test/acme", published.SaleURL)
}

func TestOnSaleToOnSaleIsQuiet(t *testing.T) {
	sink := &mockNotificationSink{}
	store := &mockSubscriberStore{subscribers: map[string][]string{"acme": {"u1"}}}
	tracker := NewTracker(store, sink, nil, nil)
	ctx := context.Background()

	tracker.Observe(ctx, result("acme", false))
	tracker.Observe(ctx, result("acme", true))
	require.Len(t, sink.written, 1)

	_, fired := tracker.Observe(ctx, result("acme", true))
	assert.False(t, fired, "a continuing sale is not a transition")
	assert.Len(t, sink.written, 1)
}

func TestOnSaleToNoSaleUpdatesSilently(t *testing.T) {
	tracker := NewTracker(nil, nil, nil, nil)
	ctx := context.Background()

	tracker.Observe(ctx, result("acme", true))
	_, fired := tracker.Observe(ctx, result("acme", false))
	assert.False(t, fired)

	status, ok := tracker.Status("acme")
	require.True(t, ok)
	assert.False(t, status.HasSale)

	// The sale ending re-arms the edge.
	_, fired = tracker.Observe(ctx, result("acme", true))
	assert.True(t, fired)
}

func TestErroredResultIsNotAnObservation(t *testing.T) {
	tracker := NewTracker(nil, nil, nil, nil)
	ctx := context.Background()

	tracker.Observe(ctx, result("acme", false))

	broken := result("acme", false)
	broken.Error = "Request timed out"
	_, fired := tracker.Observe(ctx, broken)
	assert.False(t, fired)

	status, ok := tracker.Status("acme")
	require.True(t, ok)
	assert.False(t, status.HasSale, "errored scrapes must not touch the cache")

	// The edge still fires once the brand is reachable again.
	_, fired = tracker.Observe(ctx, result("acme", true))
	assert.True(t, fired)
}

func TestSideEffectFailuresDoNotAbort(t *testing.T) {
	store := &mockSubscriberStore{err: errors.New("store down")}
	sink := &mockNotificationSink{}
	pub := &mockPublisher{err: errors.New("stream down")}
	tracker := NewTracker(store, sink, pub, nil)
	ctx := context.Background()

	tracker.Observe(ctx, result("acme", false))
	tr, fired := tracker.Observe(ctx, result("acme", true))
	require.True(t, fired, "the transition itself still fires")
	assert.Equal(t, "acme", tr.BrandKey)
	assert.Empty(t, sink.written)

	status, ok := tracker.Status("acme")
	require.True(t, ok)
	assert.True(t, status.HasSale, "the cache updates even when side effects fail")
}

func TestNotificationWriteFailureContinues(t *testing.T) {
	store := &mockSubscriberStore{subscribers: map[string][]string{"acme": {"u1", "u2"}}}
	sink := &mockNotificationSink{err: errors.New("insert failed")}
	tracker := NewTracker(store, sink, nil, nil)
	ctx := context.Background()

	tracker.Observe(ctx, result("acme", false))
	_, fired := tracker.Observe(ctx, result("acme", true))
	assert.True(t, fired)
	assert.Empty(t, sink.written)
}

func TestObserveCycleCollectsTransitions(t *testing.T) {
	store := &mockSubscriberStore{subscribers: map[string][]string{}}
	tracker := NewTracker(store, &mockNotificationSink{}, nil, nil)
	ctx := context.Background()

	baseline := []scraper.ScrapeResult{
		result("alpha", false),
		result("beta", true),
		result("gamma", false),
	}
	transitions := tracker.ObserveCycle(ctx, baseline)
	assert.Empty(t, transitions, "first cycle is all baselines")

	next := []scraper.ScrapeResult{
		result("alpha", true),
		result("beta", true),
		result("gamma", true),
	}
	transitions = tracker.ObserveCycle(ctx, next)
	require.Len(t, transitions, 2)
	keys := []string{transitions[0].BrandKey, transitions[1].BrandKey}
	assert.ElementsMatch(t, []string{"alpha", "gamma"}, keys)
}

func TestSubscriberLookupMemoizedWithinCycle(t *testing.T) {
	store := &mockSubscriberStore{subscribers: map[string][]string{"acme": {"u1"}}}
	sink := &mockNotificationSink{}
	tracker := NewTracker(store, sink, nil, nil)
	ctx := context.Background()

	tracker.Observe(ctx, result("acme", false))

	// Two transitions for the same brand within one cycle window share one
	// store round trip.
	tracker.Observe(ctx, result("acme", true))
	tracker.Observe(ctx, result("acme", false))
	tracker.Observe(ctx, result("acme", true))
	assert.Equal(t, 1, store.calls)

	// A new cycle purges the memo.
	tracker.ObserveCycle(ctx, nil)
	tracker.Observe(ctx, result("acme", false))
	tracker.Observe(ctx, result("acme", true))
	assert.Equal(t, 2, store.calls)
}
