package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/domain/model"
	"pricewatch/internal/domain/service"
	"pricewatch/internal/infrastructure/store"
)

// stubPriceSource serves fixed prices and records how often each symbol was
// fetched.
type stubPriceSource struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	errs   map[string]error
	calls  map[string]int
}

func newStubPriceSource() *stubPriceSource {
	return &stubPriceSource{
		prices: make(map[string]decimal.Decimal),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (s *stubPriceSource) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	if err, ok := s.errs[symbol]; ok {
		return decimal.Decimal{}, err
	}
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Decimal{}, errors.New("no price configured")
	}
	return price, nil
}

func (s *stubPriceSource) callCount(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

// captureNotifier records every trigger event it receives.
type captureNotifier struct {
	mu     sync.Mutex
	events []*model.TriggerEvent
}

func (n *captureNotifier) Notify(ctx context.Context, event *model.TriggerEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) Events() []*model.TriggerEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*model.TriggerEvent(nil), n.events...)
}

func newTestEngine(alerts *store.MemoryAlertStore, prices *stubPriceSource, notifier *captureNotifier) *service.AlertEngine {
	return service.NewAlertEngine(alerts, prices, notifier, nil,
		service.AlertEngineConfig{BatchSize: 2, BatchDelay: 0}, zerolog.Nop())
}

func mustCreate(t *testing.T, alerts *store.MemoryAlertStore, symbol, target string, cond model.Condition) string {
	t.Helper()
	id, err := alerts.Create(context.Background(), &model.PriceAlert{
		OwnerID:     "user1",
		Symbol:      symbol,
		TargetPrice: decimal.RequireFromString(target),
		Condition:   cond,
	})
	require.NoError(t, err)
	return id
}

func TestSweepFiresAboveAtExactBoundary(t *testing.T) {
	ctx := context.Background()
	alerts := store.NewMemoryAlertStore()
	prices := newStubPriceSource()
	notifier := &captureNotifier{}
	engine := newTestEngine(alerts, prices, notifier)

	id := mustCreate(t, alerts, "BTC", "50000", model.ConditionAbove)
	prices.prices["BTC"] = decimal.RequireFromString("50000.00")

	report, err := engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Triggered)
	assert.Empty(t, report.Failures)

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].AlertID)
	assert.Equal(t, "BTC", events[0].Symbol)
	assert.Equal(t, model.ConditionAbove, events[0].Condition)
	assert.True(t, events[0].CurrentPrice.Equal(decimal.RequireFromString("50000")))

	stored, err := alerts.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Triggered)
	require.NotNil(t, stored[0].TriggeredAt)
}

func TestSweepTriggeredAlertIsTerminal(t *testing.T) {
	ctx := context.Background()
	alerts := store.NewMemoryAlertStore()
	prices := newStubPriceSource()
	notifier := &captureNotifier{}
	engine := newTestEngine(alerts, prices, notifier)

	mustCreate(t, alerts, "BTC", "50000", model.ConditionAbove)
	prices.prices["BTC"] = decimal.RequireFromString("50000")

	_, err := engine.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, notifier.Events(), 1)

	// A later sweep, even at a price that would fire again, does nothing:
	// the alert is terminal and never re-evaluated.
	prices.prices["BTC"] = decimal.RequireFromString("49000")
	report, err := engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Evaluated)
	assert.Zero(t, report.Triggered)
	assert.Len(t, notifier.Events(), 1)
	assert.Equal(t, 1, prices.callCount("BTC"), "terminal alerts must not cost upstream fetches")
}

func TestSweepBatchesAlertsBySymbol(t *testing.T) {
	ctx := context.Background()
	alerts := store.NewMemoryAlertStore()
	prices := newStubPriceSource()
	notifier := &captureNotifier{}
	engine := newTestEngine(alerts, prices, notifier)

	for i := 0; i < 5; i++ {
		mustCreate(t, alerts, "ETH", "3000", model.ConditionBelow)
	}
	prices.prices["ETH"] = decimal.RequireFromString("2950")

	report, err := engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Evaluated)
	assert.Equal(t, 5, report.Triggered)
	assert.Equal(t, 1, prices.callCount("ETH"), "one symbol costs one fetch per sweep")

	// All five alerts saw the same fetched price.
	for _, event := range notifier.Events() {
		assert.True(t, event.CurrentPrice.Equal(decimal.RequireFromString("2950")))
	}
}

func TestSweepSelectsOnlyMatchingConditions(t *testing.T) {
	ctx := context.Background()
	alerts := store.NewMemoryAlertStore()
	prices := newStubPriceSource()
	notifier := &captureNotifier{}
	engine := newTestEngine(alerts, prices, notifier)

	belowID := mustCreate(t, alerts, "ETH", "3000", model.ConditionBelow)
	mustCreate(t, alerts, "ETH", "3500", model.ConditionAbove)
	prices.prices["ETH"] = decimal.RequireFromString("2950")

	report, err := engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1, report.Triggered)

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, belowID, events[0].AlertID)

	// The ABOVE alert stays pending for the next sweep.
	stored, _ := alerts.List(ctx, "")
	pending := 0
	for _, a := range stored {
		if !a.Triggered {
			pending++
		}
	}
	assert.Equal(t, 1, pending)
}

func TestSweepIsolatesPerSymbolFailures(t *testing.T) {
	ctx := context.Background()
	alerts := store.NewMemoryAlertStore()
	prices := newStubPriceSource()
	notifier := &captureNotifier{}
	engine := newTestEngine(alerts, prices, notifier)

	mustCreate(t, alerts, "DOWN", "10", model.ConditionAbove)
	mustCreate(t, alerts, "SOL", "100", model.ConditionAbove)
	prices.errs["DOWN"] = errors.New("connection refused")
	prices.prices["SOL"] = decimal.RequireFromString("150")

	report, err := engine.Sweep(ctx)
	require.NoError(t, err, "a failed symbol must not fail the sweep")
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Triggered)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "DOWN", report.Failures[0].Symbol)

	// The failed symbol's alert is untouched and pending.
	stored, _ := alerts.List(ctx, "")
	for _, a := range stored {
		if a.Symbol == "DOWN" {
			assert.False(t, a.Triggered)
		}
	}
}

func TestSweepTotalUpstreamOutageTriggersNothing(t *testing.T) {
	ctx := context.Background()
	alerts := store.NewMemoryAlertStore()
	prices := newStubPriceSource()
	notifier := &captureNotifier{}
	engine := newTestEngine(alerts, prices, notifier)

	mustCreate(t, alerts, "BTC", "1", model.ConditionAbove)
	mustCreate(t, alerts, "ETH", "1", model.ConditionAbove)
	prices.errs["BTC"] = errors.New("unavailable")
	prices.errs["ETH"] = errors.New("unavailable")

	report, err := engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Triggered)
	assert.Len(t, report.Failures, 2)
	assert.Empty(t, notifier.Events())
}

func TestSweepEmptyStore(t *testing.T) {
	engine := newTestEngine(store.NewMemoryAlertStore(), newStubPriceSource(), &captureNotifier{})

	report, err := engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Evaluated)
	assert.Zero(t, report.Triggered)
}

func TestSweepInterBatchDelayBoundsConcurrency(t *testing.T) {
	ctx := context.Background()
	alerts := store.NewMemoryAlertStore()
	prices := newStubPriceSource()
	notifier := &captureNotifier{}

	symbols := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}
	for _, sym := range symbols {
		mustCreate(t, alerts, sym, "1", model.ConditionAbove)
		prices.prices[sym] = decimal.RequireFromString("2")
	}

	const delay = 25 * time.Millisecond
	engine := service.NewAlertEngine(alerts, prices, notifier, nil,
		service.AlertEngineConfig{BatchSize: 2, BatchDelay: delay}, zerolog.Nop())

	start := time.Now()
	report, err := engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Triggered)

	// 5 symbols at batch size 2 is 3 batches, so 2 inter-batch delays.
	assert.GreaterOrEqual(t, time.Since(start), 2*delay-2*time.Millisecond)
}

// listStaleStore hands out alert snapshots that claim to be untriggered even
// after the underlying store has flipped them, simulating the overlap window
// between two concurrent sweeps.
type listStaleStore struct {
	*store.MemoryAlertStore
	stale []*model.PriceAlert
}

func (s *listStaleStore) List(ctx context.Context, ownerID string) ([]*model.PriceAlert, error) {
	return s.stale, nil
}

func TestSweepClaimCollapsesDuplicateNotifications(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemoryAlertStore()
	prices := newStubPriceSource()
	notifier := &captureNotifier{}

	id := mustCreate(t, inner, "BTC", "50000", model.ConditionAbove)
	prices.prices["BTC"] = decimal.RequireFromString("60000")

	// Another sweep already claimed the alert.
	claimed, err := inner.MarkTriggered(ctx, id, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	staleCopy := &model.PriceAlert{
		ID:          id,
		OwnerID:     "user1",
		Symbol:      "BTC",
		TargetPrice: decimal.RequireFromString("50000"),
		Condition:   model.ConditionAbove,
		Triggered:   false, // stale read from before the claim
	}
	engine := service.NewAlertEngine(
		&listStaleStore{MemoryAlertStore: inner, stale: []*model.PriceAlert{staleCopy}},
		prices, notifier, nil,
		service.AlertEngineConfig{BatchSize: 2}, zerolog.Nop())

	report, err := engine.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Triggered, "losing the claim race must not count as a trigger")
	assert.Empty(t, notifier.Events(), "losing the claim race must not notify")
}

func TestSweepStoreListFailure(t *testing.T) {
	engine := service.NewAlertEngine(failingStore{}, newStubPriceSource(), &captureNotifier{}, nil,
		service.AlertEngineConfig{BatchSize: 2}, zerolog.Nop())

	_, err := engine.Sweep(context.Background())
	require.Error(t, err)
}

type failingStore struct{}

func (failingStore) Create(ctx context.Context, alert *model.PriceAlert) (string, error) {
	return "", errors.New("store down")
}

func (failingStore) List(ctx context.Context, ownerID string) ([]*model.PriceAlert, error) {
	return nil, errors.New("store down")
}

func (failingStore) MarkTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	return false, errors.New("store down")
}

func (failingStore) Delete(ctx context.Context, id string) error {
	return errors.New("store down")
}
