package polymarket

// clob.go — CLOB API adapter: orderbook snapshots por token.

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/vanguard/internal/domain"
)

const bookPath = "/book"

// FetchOrderBook devuelve el snapshot del libro para un token. El snapshot
// sale ya normalizado: bids descendentes, asks ascendentes, spread y liquidez
// calculados.
func (c *Client) FetchOrderBook(ctx context.Context, marketID, tokenID string) (domain.OrderBookSnapshot, error) {
	if tokenID == "" {
		return domain.OrderBookSnapshot{}, fmt.Errorf("polymarket.FetchOrderBook: empty token id")
	}

	var raw bookResponse
	reqURL := c.clobBase + bookPath + "?token_id=" + url.QueryEscape(tokenID)
	if err := c.get(ctx, c.bookLimiter, reqURL, &raw); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("polymarket.FetchOrderBook %s: %w", tokenID, err)
	}

	return mapOrderBook(marketID, tokenID, raw), nil
}
