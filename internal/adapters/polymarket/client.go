// Package polymarket implementa ports.MarketProvider contra las APIs públicas
// de Polymarket: Gamma para metadata de mercados y el CLOB para orderbooks.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alejandrodnm/vanguard/internal/ports"
	"github.com/alejandrodnm/vanguard/internal/resilience"
	"golang.org/x/time/rate"
)

const (
	defaultCLOBBase  = "https://clob.polymarket.com"
	defaultGammaBase = "https://gamma-api.polymarket.com"

	// Rate limits al 60% de los límites reales documentados.
	// CLOB /book: 500/10s → 300/10s → 30/s
	bookRatePerSec = 30
	// Gamma /markets: 300/10s → 180/10s → 18/s
	gammaRatePerSec = 18

	breakerThreshold = 5
	breakerReset     = 30 * time.Second
)

// Compile-time interface check.
var _ ports.MarketProvider = (*Client)(nil)

// Client es el HTTP client de Polymarket. Rate limiting por endpoint, retry
// con backoff para fallos transitorios y un circuit breaker compartido entre
// ambas APIs — si Polymarket entero está caído, no tiene sentido seguir
// martilleando ninguna de las dos.
type Client struct {
	http         *http.Client
	clobBase     string
	gammaBase    string
	gammaLimiter *rate.Limiter
	bookLimiter  *rate.Limiter
	breaker      *resilience.CircuitBreaker
	retryOpts    resilience.RetryOptions
}

// NewClient crea un Client con los base URLs dados.
// Si clobBase o gammaBase están vacíos, usa los URLs de producción.
func NewClient(clobBase, gammaBase string) *Client {
	if clobBase == "" {
		clobBase = defaultCLOBBase
	}
	if gammaBase == "" {
		gammaBase = defaultGammaBase
	}
	return &Client{
		http:         &http.Client{Timeout: 10 * time.Second},
		clobBase:     clobBase,
		gammaBase:    gammaBase,
		gammaLimiter: rate.NewLimiter(gammaRatePerSec, 10),
		bookLimiter:  rate.NewLimiter(bookRatePerSec, 5),
		breaker:      resilience.NewCircuitBreaker(breakerThreshold, breakerReset),
		retryOpts:    resilience.DefaultRetryOptions(),
	}
}

// httpStatusError marca respuestas no-2xx para que el predicado de retry
// pueda distinguir errores de cliente (no reintentar) de los de servidor.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, e.body)
}

// retryable reintenta fallos de red, 5xx y 429. Un breaker abierto o un 4xx
// no mejoran por insistir.
func retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500 || statusErr.status == http.StatusTooManyRequests
	}
	return true
}

// get hace un GET JSON con rate limiting, circuit breaker y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return resilience.Retry(ctx, c.retryOpts, retryable, func(ctx context.Context) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		return c.breaker.Do(func() error {
			return c.doOnce(ctx, url, out)
		})
	})
}

func (c *Client) doOnce(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpStatusError{status: resp.StatusCode, body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
