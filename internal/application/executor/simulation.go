package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/alejandrodnm/vanguard/internal/ports"
	"github.com/alejandrodnm/vanguard/internal/resilience"
)

// SimulationParams son los parámetros de una simulación manual. Todos
// opcionales: lo que falte se resuelve contra el mercado y los caps actuales.
type SimulationParams struct {
	MarketID    string             `json:"marketId,omitempty"`
	TokenID     string             `json:"tokenId,omitempty"`
	Side        domain.TradeSide   `json:"side,omitempty"`
	SizeUSD     float64            `json:"sizeUsd,omitempty"`
	TimeInForce domain.TimeInForce `json:"timeInForce,omitempty"`
	Confidence  float64            `json:"confidence,omitempty"`
	EdgeBps     float64            `json:"edgeBps,omitempty"`
	IntentID    string             `json:"intentId,omitempty"`
}

const trendingFetchLimit = 10

// Simulator construye trade requests completas a partir de parámetros
// sueltos y las pasa por el orquestador. Es la entrada del flag -simulate del
// CLI y del endpoint de simulación del ops layer.
type Simulator struct {
	logger   *slog.Logger
	provider ports.MarketProvider
	runtime  ports.RuntimeConfig
	orch     *Orchestrator
}

// NewSimulator cablea el simulador.
func NewSimulator(logger *slog.Logger, provider ports.MarketProvider, runtime ports.RuntimeConfig, orch *Orchestrator) *Simulator {
	return &Simulator{
		logger:   logger,
		provider: provider,
		runtime:  runtime,
		orch:     orch,
	}
}

// Simulate resuelve mercado, token y defaults, y ejecuta. El tamaño se
// recorta al cap por trade en vez de rechazar: el objetivo de una simulación
// manual es ver un fill, no pelearse con el gate de riesgo.
func (s *Simulator) Simulate(ctx context.Context, params SimulationParams) (domain.TradeExecutionResult, error) {
	caps, err := s.runtime.RiskCaps(ctx)
	if err != nil {
		return domain.TradeExecutionResult{}, fmt.Errorf("executor.Simulate: read risk caps: %w", err)
	}

	marketID, tokenID := params.MarketID, params.TokenID
	if marketID == "" || tokenID == "" {
		market, err := s.topTrendingMarket(ctx, caps.MinLiquidityUSD)
		if err != nil {
			return domain.TradeExecutionResult{}, err
		}
		if marketID == "" {
			marketID = market.MarketID
		}
		if tokenID == "" {
			tokenID = market.TokenID
		}
		s.logger.Info("simulation target resolved",
			"market", marketID,
			"question", market.Question,
		)
	}

	book, err := s.provider.FetchOrderBook(ctx, marketID, tokenID)
	if err != nil {
		return domain.TradeExecutionResult{}, fmt.Errorf("executor.Simulate: fetch orderbook: %w", err)
	}

	sizeUSD := params.SizeUSD
	if sizeUSD <= 0 || sizeUSD > caps.MaxUSDPerTrade {
		sizeUSD = caps.MaxUSDPerTrade
	}

	side := params.Side
	if side == "" {
		side = domain.SideBuy
	}
	tif := params.TimeInForce
	if tif == "" {
		tif = domain.TIFImmediateOrCancel
	}

	// Defaults que pasan los checks de confianza y edge por poco: la
	// simulación prueba el pipeline entero, no la estrategia.
	confidence := params.Confidence
	if confidence <= 0 {
		confidence = caps.ConfidenceMin + 0.02
	}
	edgeBps := params.EdgeBps
	if edgeBps <= 0 {
		edgeBps = caps.EdgeMinBps + 5
	}

	return s.orch.Execute(ctx, domain.TradeExecutionRequest{
		MarketID:          marketID,
		TokenID:           tokenID,
		Side:              side,
		SizeUSD:           sizeUSD,
		Confidence:        confidence,
		EdgeBps:           edgeBps,
		TimeInForce:       tif,
		OrderBook:         book,
		ExecutionIntentID: params.IntentID,
	})
}

// SweepOutcome es el resultado de una simulación dentro de un sweep.
type SweepOutcome struct {
	Params SimulationParams
	Result domain.TradeExecutionResult
	Err    error
}

// SimulateSweep corre una simulación por cada params, serializadas por la
// cola: FIFO estricto y un intervalo mínimo entre arranques, para repartir
// las llamadas al exchange dentro de su rate budget. Un fallo individual no
// corta el sweep; la cancelación del contexto sí.
func (s *Simulator) SimulateSweep(ctx context.Context, queue *resilience.RateLimitedQueue, batch []SimulationParams) []SweepOutcome {
	outcomes := make([]SweepOutcome, 0, len(batch))
	for _, params := range batch {
		outcome := SweepOutcome{Params: params}
		outcome.Err = queue.Enqueue(ctx, func(ctx context.Context) error {
			result, err := s.Simulate(ctx, params)
			outcome.Result = result
			return err
		})
		outcomes = append(outcomes, outcome)

		if ctx.Err() != nil {
			break
		}
	}
	return outcomes
}

func (s *Simulator) topTrendingMarket(ctx context.Context, minLiquidityUSD float64) (domain.TrendingMarket, error) {
	markets, err := s.provider.FetchTrendingMarkets(ctx, trendingFetchLimit, minLiquidityUSD)
	if err != nil {
		return domain.TrendingMarket{}, fmt.Errorf("executor.Simulate: fetch trending markets: %w", err)
	}
	if len(markets) == 0 {
		return domain.TrendingMarket{}, fmt.Errorf("executor.Simulate: no trending markets with liquidity >= %.0f", minLiquidityUSD)
	}
	return markets[0], nil
}
