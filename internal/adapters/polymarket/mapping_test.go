package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gammaFixture(id string, volume, liquidity string) gammaMarket {
	return gammaMarket{
		ID:           id,
		ConditionID:  "0xcond-" + id,
		Question:     "Will it?",
		Volume24h:    json.Number(volume),
		Liquidity:    json.Number(liquidity),
		BestBid:      json.Number("0.48"),
		BestAsk:      json.Number("0.52"),
		ClobTokenIDs: `["tok-yes-` + id + `","tok-no-` + id + `"]`,
		Active:       true,
	}
}

func TestMapTrendingMarkets_FiltersAndSorts(t *testing.T) {
	raw := []gammaMarket{
		gammaFixture("a", "1000", "50000"),
		gammaFixture("b", "9000", "50000"),
		gammaFixture("c", "5000", "100"), // poca liquidez
	}
	closed := gammaFixture("d", "99999", "50000")
	closed.Closed = true
	raw = append(raw, closed)

	markets := mapTrendingMarkets(raw, 10_000)

	require.Len(t, markets, 2)
	assert.Equal(t, "b", markets[0].MarketID, "sorted by volume desc")
	assert.Equal(t, "a", markets[1].MarketID)
	assert.Equal(t, "tok-yes-b", markets[0].TokenID, "first clob token is the YES outcome")
	assert.InDelta(t, 0.52, markets[0].BestAsk, 1e-9)
}

func TestMapTrendingMarkets_SkipsMarketsWithoutTokens(t *testing.T) {
	m := gammaFixture("a", "1000", "50000")
	m.ClobTokenIDs = ""
	broken := gammaFixture("b", "1000", "50000")
	broken.ClobTokenIDs = "not-json"

	markets := mapTrendingMarkets([]gammaMarket{m, broken}, 0)
	assert.Empty(t, markets)
}

func TestMapOrderBook_NormalizesLevels(t *testing.T) {
	raw := bookResponse{
		Timestamp: "1756700000000",
		// La API no garantiza orden
		Bids: []bookEntryRaw{
			{Price: "0.45", Size: "100"},
			{Price: "0.48", Size: "200"},
		},
		Asks: []bookEntryRaw{
			{Price: "0.55", Size: "50"},
			{Price: "0.52", Size: "300"},
		},
	}

	book := mapOrderBook("0xmarket", "tok-yes", raw)

	assert.Equal(t, "0xmarket", book.MarketID)
	assert.Equal(t, "tok-yes", book.TokenID)

	require.Len(t, book.Bids, 2)
	assert.InDelta(t, 0.48, book.Bids[0].Price, 1e-9, "bids descending")
	require.Len(t, book.Asks, 2)
	assert.InDelta(t, 0.52, book.Asks[0].Price, 1e-9, "asks ascending")

	assert.InDelta(t, 0.48, book.BestBid, 1e-9)
	assert.InDelta(t, 0.52, book.BestAsk, 1e-9)
	// (0.52-0.48)/0.52 × 10000
	assert.InDelta(t, 769.23, book.SpreadBps, 0.01)
	// 0.45×100 + 0.48×200 + 0.55×50 + 0.52×300 = 324.5
	assert.InDelta(t, 324.5, book.LiquidityUSD, 1e-9)
	assert.False(t, book.Timestamp.IsZero())
}

func TestMapOrderBook_EmptyBook(t *testing.T) {
	book := mapOrderBook("0xmarket", "tok-yes", bookResponse{})

	assert.Empty(t, book.Bids)
	assert.Empty(t, book.Asks)
	assert.Zero(t, book.BestBid)
	assert.Zero(t, book.BestAsk)
	assert.Zero(t, book.SpreadBps)
	assert.Zero(t, book.LiquidityUSD)
	assert.True(t, book.Timestamp.IsZero())
}

func TestMapOrderBook_DropsDegenerateLevels(t *testing.T) {
	raw := bookResponse{
		Asks: []bookEntryRaw{
			{Price: "0", Size: "100"},
			{Price: "0.5", Size: "0"},
			{Price: "garbage", Size: "100"},
			{Price: "0.5", Size: "100"},
		},
	}

	book := mapOrderBook("m", "t", raw)
	require.Len(t, book.Asks, 1)
	assert.InDelta(t, 0.5, book.Asks[0].Price, 1e-9)
}
