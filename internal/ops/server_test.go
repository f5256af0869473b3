package ops_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/vanguard/internal/adapters/storage"
	"github.com/alejandrodnm/vanguard/internal/application/executor"
	"github.com/alejandrodnm/vanguard/internal/application/runtime"
	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/alejandrodnm/vanguard/internal/ops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "secret-token"

// fakeProvider sirve siempre el mismo libro líquido.
type fakeProvider struct{}

func (fakeProvider) FetchTrendingMarkets(context.Context, int, float64) ([]domain.TrendingMarket, error) {
	return []domain.TrendingMarket{
		{MarketID: "0xtop", TokenID: "tok-top", VolumeUSD: 500_000, Question: "Top market?"},
	}, nil
}

func (fakeProvider) FetchOrderBook(_ context.Context, marketID, tokenID string) (domain.OrderBookSnapshot, error) {
	return domain.OrderBookSnapshot{
		MarketID:     marketID,
		TokenID:      tokenID,
		Asks:         []domain.BookEntry{{Price: 0.5, Size: 100_000}},
		Bids:         []domain.BookEntry{{Price: 0.49, Size: 100_000}},
		BestAsk:      0.5,
		BestBid:      0.49,
		SpreadBps:    20,
		LiquidityUSD: 99_000,
	}, nil
}

// newTestServer monta el stack completo sobre SQLite en memoria.
func newTestServer(t *testing.T) (*httptest.Server, *storage.SQLiteStorage) {
	t.Helper()

	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loader := runtime.NewLoader(db,
		domain.SafetyState{DryRun: true},
		domain.DefaultRiskCaps,
	)
	orchestrator := executor.NewOrchestrator(logger, loader, db, db, &executionStub{}, 0)
	sim := executor.NewSimulator(logger, fakeProvider{}, loader, orchestrator)

	server, err := ops.NewServer(logger, db, loader, sim, testToken)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, db
}

// executionStub llena siempre al precio del best ask.
type executionStub struct{}

func (e *executionStub) PlaceOrder(_ context.Context, req domain.PlacementRequest) (domain.PlacementResult, error) {
	avg := req.OrderBook.BestAsk
	slip := 0.0
	return domain.PlacementResult{
		Status:          domain.IntentFilled,
		FilledSizeUSD:   req.SizeUSD,
		AvgPrice:        &avg,
		SlippageBps:     &slip,
		FillCount:       1,
		ExternalOrderID: "dryrun:" + req.IntentID,
	}, nil
}

func (e *executionStub) CancelOrder(context.Context, string) error { return nil }

func doRequest(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(ops.AuthHeader, token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestServer_RejectsMissingToken(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/ops/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
}

func TestServer_RejectsWrongToken(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/ops/status", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_Status(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/ops/status", testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])

	safety := body["safety"].(map[string]any)
	assert.Equal(t, true, safety["dryRun"])
	assert.Equal(t, false, safety["killSwitch"])

	caps := body["riskCaps"].(map[string]any)
	assert.InDelta(t, 100.0, caps["maxUsdPerTrade"].(float64), 1e-9)
}

func TestServer_ArmAndDisarm(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/ops/arm", testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := doRequest(t, http.MethodGet, ts.URL+"/ops/status", testToken, nil)
	assert.Equal(t, true, body["safety"].(map[string]any)["armed"])

	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/ops/disarm", testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = doRequest(t, http.MethodGet, ts.URL+"/ops/status", testToken, nil)
	assert.Equal(t, false, body["safety"].(map[string]any)["armed"])
}

func TestServer_KillSwitch(t *testing.T) {
	ts, _ := newTestServer(t)

	doRequest(t, http.MethodPost, ts.URL+"/ops/kill", testToken, nil)
	_, body := doRequest(t, http.MethodGet, ts.URL+"/ops/status", testToken, nil)
	assert.Equal(t, true, body["safety"].(map[string]any)["killSwitch"])

	doRequest(t, http.MethodPost, ts.URL+"/ops/unkill", testToken, nil)
	_, body = doRequest(t, http.MethodGet, ts.URL+"/ops/status", testToken, nil)
	assert.Equal(t, false, body["safety"].(map[string]any)["killSwitch"])
}

func TestServer_ConfigUpdate(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/ops/config", testToken,
		map[string]any{"MAX_USD_PER_TRADE": 250, "MAX_SLIPPAGE_BPS": "75"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])

	_, body = doRequest(t, http.MethodGet, ts.URL+"/ops/config", testToken, nil)
	caps := body["riskCaps"].(map[string]any)
	assert.InDelta(t, 250.0, caps["maxUsdPerTrade"].(float64), 1e-9)
	assert.InDelta(t, 75.0, caps["maxSlippageBps"].(float64), 1e-9, "string values coerce on read")
}

func TestServer_ConfigRejectsUnknownKey(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/ops/config", testToken,
		map[string]any{"DROP_TABLES": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "DROP_TABLES")
}

func TestServer_SimulateTrade(t *testing.T) {
	ts, db := newTestServer(t)

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/ops/simulate-trade", testToken,
		map[string]any{"intentId": "sim-1", "sizeUsd": 50})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])

	result := body["result"].(map[string]any)
	assert.Equal(t, "FILLED", result["status"])
	assert.Equal(t, "sim-1", result["intentId"])

	// La simulación dejó rastro durable
	intent, found, err := db.GetIntent(context.Background(), "sim-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.IntentFilled, intent.Status)
}
