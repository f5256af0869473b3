package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/alejandrodnm/vanguard/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	markets []domain.TrendingMarket
	book    domain.OrderBookSnapshot
	err     error

	bookCalls []string // "marketID/tokenID"
}

func (f *fakeProvider) FetchTrendingMarkets(context.Context, int, float64) ([]domain.TrendingMarket, error) {
	return f.markets, f.err
}

func (f *fakeProvider) FetchOrderBook(_ context.Context, marketID, tokenID string) (domain.OrderBookSnapshot, error) {
	f.bookCalls = append(f.bookCalls, marketID+"/"+tokenID)
	return f.book, f.err
}

func liquidBook() domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		Asks:         []domain.BookEntry{{Price: 0.5, Size: 100_000}},
		Bids:         []domain.BookEntry{{Price: 0.49, Size: 100_000}},
		BestAsk:      0.5,
		BestBid:      0.49,
		SpreadBps:    20,
		LiquidityUSD: 99_000,
	}
}

func newTestSimulator(t *testing.T, provider *fakeProvider) (*Simulator, *harness) {
	t.Helper()
	h := newHarness(0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSimulator(logger, provider, h.runtime, h.orch), h
}

func TestSimulator_ExplicitMarketAndToken(t *testing.T) {
	provider := &fakeProvider{book: liquidBook()}
	sim, _ := newTestSimulator(t, provider)

	result, err := sim.Simulate(context.Background(), SimulationParams{
		MarketID: "0xmarket",
		TokenID:  "token-yes",
		SizeUSD:  50,
		IntentID: "sim-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.IntentFilled, result.Status)
	assert.Equal(t, []string{"0xmarket/token-yes"}, provider.bookCalls)
}

func TestSimulator_ResolvesTopTrendingMarket(t *testing.T) {
	provider := &fakeProvider{
		markets: []domain.TrendingMarket{
			{MarketID: "0xtop", TokenID: "tok-top", VolumeUSD: 900_000, Question: "Top?"},
			{MarketID: "0xsecond", TokenID: "tok-2", VolumeUSD: 100_000},
		},
		book: liquidBook(),
	}
	sim, _ := newTestSimulator(t, provider)

	result, err := sim.Simulate(context.Background(), SimulationParams{IntentID: "sim-1"})
	require.NoError(t, err)

	assert.Equal(t, domain.IntentFilled, result.Status)
	assert.Equal(t, []string{"0xtop/tok-top"}, provider.bookCalls)
}

func TestSimulator_ClampsSizeToCap(t *testing.T) {
	provider := &fakeProvider{book: liquidBook()}
	sim, h := newTestSimulator(t, provider)

	result, err := sim.Simulate(context.Background(), SimulationParams{
		MarketID: "0xmarket",
		TokenID:  "token-yes",
		SizeUSD:  10_000, // muy por encima de MAX_USD_PER_TRADE
		IntentID: "sim-1",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Placement)
	assert.InDelta(t, h.runtime.caps.MaxUSDPerTrade, result.Placement.FilledSizeUSD, 1e-9)
	assert.Equal(t, domain.IntentFilled, result.Status, "clamped size must clear the risk gate")
}

func TestSimulator_DefaultsPassRiskChecks(t *testing.T) {
	provider := &fakeProvider{book: liquidBook()}
	sim, _ := newTestSimulator(t, provider)

	// Sin confidence ni edge: los defaults deben superar los mínimos
	result, err := sim.Simulate(context.Background(), SimulationParams{
		MarketID: "0xmarket",
		TokenID:  "token-yes",
		IntentID: "sim-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Risk.Allowed)
	assert.Equal(t, domain.IntentFilled, result.Status)
}

func TestSimulator_NoTrendingMarkets(t *testing.T) {
	provider := &fakeProvider{markets: nil, book: liquidBook()}
	sim, _ := newTestSimulator(t, provider)

	_, err := sim.Simulate(context.Background(), SimulationParams{})
	assert.ErrorContains(t, err, "no trending markets")
}

func TestSimulator_SweepRunsAllParams(t *testing.T) {
	provider := &fakeProvider{book: liquidBook()}
	sim, _ := newTestSimulator(t, provider)

	queue := resilience.NewRateLimitedQueue(0)
	outcomes := sim.SimulateSweep(context.Background(), queue, []SimulationParams{
		{MarketID: "0xa", TokenID: "tok-a", IntentID: "sweep-1"},
		{MarketID: "0xb", TokenID: "tok-b", IntentID: "sweep-2"},
	})

	require.Len(t, outcomes, 2)
	for _, outcome := range outcomes {
		require.NoError(t, outcome.Err)
		assert.Equal(t, domain.IntentFilled, outcome.Result.Status)
	}
	assert.Equal(t, []string{"0xa/tok-a", "0xb/tok-b"}, provider.bookCalls, "strict FIFO order")
}

func TestSimulator_SweepContinuesPastFailures(t *testing.T) {
	provider := &fakeProvider{book: liquidBook()}
	sim, _ := newTestSimulator(t, provider)

	queue := resilience.NewRateLimitedQueue(0)
	outcomes := sim.SimulateSweep(context.Background(), queue, []SimulationParams{
		{IntentID: "sweep-1"}, // sin mercado y sin trending → error
		{MarketID: "0xb", TokenID: "tok-b", IntentID: "sweep-2"},
	})

	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	require.NoError(t, outcomes[1].Err)
	assert.Equal(t, domain.IntentFilled, outcomes[1].Result.Status)
}

func TestSimulator_ProviderErrorPropagates(t *testing.T) {
	provider := &fakeProvider{err: errors.New("gamma down")}
	sim, _ := newTestSimulator(t, provider)

	_, err := sim.Simulate(context.Background(), SimulationParams{
		MarketID: "0xmarket",
		TokenID:  "token-yes",
	})
	assert.ErrorContains(t, err, "gamma down")
}
