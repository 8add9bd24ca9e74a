package http_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/app"
	"pricewatch/internal/app/dto"
	"pricewatch/internal/domain/service"
	handlers "pricewatch/internal/handlers/http"
	ws "pricewatch/internal/handlers/websocket"
	"pricewatch/internal/infrastructure/marketdata"
	"pricewatch/internal/infrastructure/store"
)

// newTestServer wires a full stack against a fake upstream: memory store,
// real market-data client, real engine.
func newTestServer(t *testing.T, upstreamPrice string) (http.Handler, *store.MemoryAlertStore) {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		fmt.Fprintf(w, `{"symbol":%q,"price":%q,"source":"test"}`, symbol, upstreamPrice)
	}))
	t.Cleanup(upstream.Close)

	cfg := marketdata.ClientConfig{BaseURL: upstream.URL, Timeout: 2 * time.Second}
	limiter := marketdata.NewLimiter(0)
	quoteClient := marketdata.NewClient(cfg, marketdata.NewCache(time.Minute), limiter, zerolog.Nop())

	alerts := store.NewMemoryAlertStore()
	broadcaster := ws.NewWebSocketBroadcaster(zerolog.Nop())
	engine := service.NewAlertEngine(alerts, quoteClient,
		app.NewFanoutNotifier(broadcaster), nil,
		service.AlertEngineConfig{BatchSize: 2}, zerolog.Nop())

	server := handlers.NewServer(":0", alerts, engine, quoteClient, nil, broadcaster, zerolog.Nop())
	return server.Handler(), alerts
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newTestServer(t, "50000")

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateListDeleteAlert(t *testing.T) {
	handler, _ := newTestServer(t, "50000")

	rec := doJSON(t, handler, http.MethodPost, "/alerts", dto.CreateAlertRequest{
		OwnerID:     "user1",
		Symbol:      "BTC",
		TargetPrice: "60000",
		Condition:   "above",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created dto.AlertDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.False(t, created.Triggered)

	rec = doJSON(t, handler, http.MethodGet, "/alerts?owner=user1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []dto.AlertDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	rec = doJSON(t, handler, http.MethodDelete, "/alerts/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/alerts", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestCreateAlertValidation(t *testing.T) {
	handler, _ := newTestServer(t, "50000")

	rec := doJSON(t, handler, http.MethodPost, "/alerts", dto.CreateAlertRequest{
		OwnerID:     "user1",
		Symbol:      "BTC",
		TargetPrice: "-10",
		Condition:   "above",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/alerts", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckNowTriggersAndReports(t *testing.T) {
	handler, _ := newTestServer(t, "50000")

	rec := doJSON(t, handler, http.MethodPost, "/alerts", dto.CreateAlertRequest{
		OwnerID:     "user1",
		Symbol:      "BTC",
		TargetPrice: "50000",
		Condition:   "above",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/alerts/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report dto.SweepReportDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Triggered)
	assert.Empty(t, report.Failures)

	// Alert is now terminal.
	rec = doJSON(t, handler, http.MethodGet, "/alerts", nil)
	var listed []dto.AlertDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Triggered)
}

func TestCheckNowReportsSymbolFailures(t *testing.T) {
	// Upstream that always refuses.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(upstream.Close)

	cfg := marketdata.ClientConfig{BaseURL: upstream.URL, Timeout: 2 * time.Second}
	client := marketdata.NewClient(cfg, marketdata.NewCache(time.Minute), marketdata.NewLimiter(0), zerolog.Nop())
	alerts := store.NewMemoryAlertStore()
	broadcaster := ws.NewWebSocketBroadcaster(zerolog.Nop())
	engine := service.NewAlertEngine(alerts, client, app.NewFanoutNotifier(), nil,
		service.AlertEngineConfig{BatchSize: 2}, zerolog.Nop())
	server := handlers.NewServer(":0", alerts, engine, client, nil, broadcaster, zerolog.Nop())
	handler := server.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/alerts", dto.CreateAlertRequest{
		OwnerID:     "user1",
		Symbol:      "BTC",
		TargetPrice: "1",
		Condition:   "above",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/alerts/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report dto.SweepReportDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Zero(t, report.Triggered)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "BTC", report.Failures[0].Symbol)
}

func TestPriceEndpoint(t *testing.T) {
	handler, _ := newTestServer(t, "3000.50")

	rec := doJSON(t, handler, http.MethodGet, "/price?symbol=ETH", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var quote dto.QuoteDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "ETH", quote.Symbol)
	assert.Equal(t, "3000.5", quote.Price)

	rec = doJSON(t, handler, http.MethodGet, "/price", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryUnconfigured(t *testing.T) {
	handler, _ := newTestServer(t, "50000")

	rec := doJSON(t, handler, http.MethodGet, "/alerts/history?owner=user1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	handler, _ := newTestServer(t, "50000")

	rec := doJSON(t, handler, http.MethodPut, "/alerts", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/alerts/check", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
