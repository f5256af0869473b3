package ports

import (
	"context"

	"github.com/alejandrodnm/vanguard/internal/domain"
)

// MarketProvider obtiene mercados y orderbooks del exchange.
type MarketProvider interface {
	// FetchTrendingMarkets devuelve hasta limit mercados activos con
	// liquidez >= minLiquidityUSD, ordenados por volumen descendente.
	FetchTrendingMarkets(ctx context.Context, limit int, minLiquidityUSD float64) ([]domain.TrendingMarket, error)

	// FetchOrderBook devuelve el snapshot del libro para el token dado.
	FetchOrderBook(ctx context.Context, marketID, tokenID string) (domain.OrderBookSnapshot, error)
}
