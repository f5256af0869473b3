package polymarket

// mapping.go — conversión de DTOs raw a domain entities.

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/vanguard/internal/domain"
)

// mapTrendingMarkets filtra mercados inactivos, sin tokens o por debajo de la
// liquidez mínima, y los ordena por volumen descendente.
func mapTrendingMarkets(raw []gammaMarket, minLiquidityUSD float64) []domain.TrendingMarket {
	markets := make([]domain.TrendingMarket, 0, len(raw))
	for _, m := range raw {
		if !m.Active || m.Closed {
			continue
		}

		tokenIDs := parseTokenIDs(m.ClobTokenIDs)
		if len(tokenIDs) == 0 {
			continue
		}

		liquidity := numberToFloat(m.Liquidity)
		if liquidity < minLiquidityUSD {
			continue
		}

		markets = append(markets, domain.TrendingMarket{
			MarketID:     m.ID,
			ConditionID:  m.ConditionID,
			Question:     m.Question,
			TokenID:      tokenIDs[0], // primer token = outcome YES
			VolumeUSD:    numberToFloat(m.Volume24h),
			LiquidityUSD: liquidity,
			BestBid:      numberToFloat(m.BestBid),
			BestAsk:      numberToFloat(m.BestAsk),
			EndDate:      m.EndDateISO,
		})
	}

	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].VolumeUSD > markets[j].VolumeUSD
	})
	return markets
}

// mapOrderBook normaliza el libro: bids de mayor a menor, asks de menor a
// mayor, y deriva best bid/ask, spread y liquidez total.
func mapOrderBook(marketID, tokenID string, raw bookResponse) domain.OrderBookSnapshot {
	bids := mapEntries(raw.Bids)
	asks := mapEntries(raw.Asks)

	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	snapshot := domain.OrderBookSnapshot{
		MarketID:     marketID,
		TokenID:      tokenID,
		Bids:         bids,
		Asks:         asks,
		LiquidityUSD: domain.BookLiquidityUSD(bids, asks),
		Timestamp:    parseTimestamp(raw.Timestamp),
	}
	if len(bids) > 0 {
		snapshot.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		snapshot.BestAsk = asks[0].Price
	}
	snapshot.SpreadBps = domain.SpreadBpsBetween(snapshot.BestBid, snapshot.BestAsk)
	return snapshot
}

func mapEntries(raw []bookEntryRaw) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, e := range raw {
		price := domain.ParsePrice(e.Price)
		size := domain.ParsePrice(e.Size)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}
	return entries
}

// parseTokenIDs decodifica el campo clobTokenIds de Gamma: un array JSON
// serializado dentro de un string.
func parseTokenIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func numberToFloat(n json.Number) float64 {
	v, _ := n.Float64()
	return v
}

// parseTimestamp convierte el epoch millis (string) del CLOB. Cero si no
// parsea — el snapshot sigue siendo usable sin timestamp.
func parseTimestamp(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
