package polymarket

// gamma.go — Gamma API adapter: mercados trending por volumen.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/vanguard/internal/domain"
)

const marketsPath = "/markets"

// FetchTrendingMarkets pide a Gamma los mercados activos ordenados por
// volumen 24h y filtra por liquidez mínima. Pedimos de más porque el filtro
// de liquidez descarta una fracción de la página.
func (c *Client) FetchTrendingMarkets(ctx context.Context, limit int, minLiquidityUSD float64) ([]domain.TrendingMarket, error) {
	if limit <= 0 {
		limit = 10
	}

	query := url.Values{}
	query.Set("active", "true")
	query.Set("closed", "false")
	query.Set("order", "volume24hr")
	query.Set("ascending", "false")
	query.Set("limit", strconv.Itoa(limit*3))

	var raw []gammaMarket
	reqURL := c.gammaBase + marketsPath + "?" + query.Encode()
	if err := c.get(ctx, c.gammaLimiter, reqURL, &raw); err != nil {
		return nil, fmt.Errorf("polymarket.FetchTrendingMarkets: %w", err)
	}

	markets := mapTrendingMarkets(raw, minLiquidityUSD)
	if len(markets) > limit {
		markets = markets[:limit]
	}

	slog.Debug("trending markets fetched",
		"raw", len(raw),
		"kept", len(markets),
		"minLiquidityUsd", minLiquidityUSD,
	)
	return markets, nil
}
