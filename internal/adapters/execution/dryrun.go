// Package execution contiene los execution clients. DryRunClient simula
// fills contra un snapshot del orderbook sin tocar el exchange.
package execution

import (
	"context"

	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/alejandrodnm/vanguard/internal/ports"
)

// Compile-time interface check.
var _ ports.ExecutionClient = (*DryRunClient)(nil)

// DryRunClient implementa ports.ExecutionClient caminando el libro nivel a
// nivel con prioridad de precio: BUY consume asks de menor a mayor, SELL
// consume bids de mayor a menor. Determinista — mismo snapshot, mismo fill.
type DryRunClient struct{}

// NewDryRunClient crea el cliente de simulación.
func NewDryRunClient() *DryRunClient {
	return &DryRunClient{}
}

// fillComputation es el resultado crudo de caminar el libro, antes de aplicar
// la política de decisión.
type fillComputation struct {
	filledSizeUSD float64
	avgPrice      *float64
	fillCount     int
	fullyFilled   bool
}

// fullFillTolerance absorbe el ruido de float al restar USD consumidos.
const fullFillTolerance = 1e-9

// computeFill consume niveles greedy: en cada nivel toma
// min(remainingUsd, price×size), convierte a shares al precio del nivel y
// acumula. Niveles con precio o tamaño cero se saltan.
func computeFill(side domain.TradeSide, targetUSD float64, bids, asks []domain.BookEntry) fillComputation {
	levels := asks
	if side == domain.SideSell {
		levels = bids
	}

	remainingUSD := targetUSD
	var consumedUSD, consumedShares float64
	fillCount := 0

	for _, level := range levels {
		if remainingUSD <= 0 {
			break
		}

		availableUSD := level.Price * level.Size
		if availableUSD <= 0 {
			continue
		}

		takeUSD := min(remainingUSD, availableUSD)
		consumedUSD += takeUSD
		consumedShares += takeUSD / level.Price
		remainingUSD -= takeUSD
		fillCount++
	}

	var avgPrice *float64
	if consumedShares > 0 {
		p := consumedUSD / consumedShares
		avgPrice = &p
	}

	return fillComputation{
		filledSizeUSD: consumedUSD,
		avgPrice:      avgPrice,
		fillCount:     fillCount,
		fullyFilled:   remainingUSD <= fullFillTolerance,
	}
}

// referencePrice es el best ask para BUY y el best bid para SELL.
// 0 significa que no hay referencia.
func referencePrice(side domain.TradeSide, bestBid, bestAsk float64) float64 {
	if side == domain.SideBuy {
		return bestAsk
	}
	return bestBid
}

// computeSlippageBps devuelve nil si no hay referencia o precio medio.
// Slippage positivo siempre significa "peor que la referencia", para ambos
// lados.
func computeSlippageBps(side domain.TradeSide, reference float64, avgPrice *float64) *float64 {
	if reference <= 0 || avgPrice == nil {
		return nil
	}

	var bps float64
	if side == domain.SideBuy {
		bps = (*avgPrice - reference) / reference * 10_000
	} else {
		bps = (reference - *avgPrice) / reference * 10_000
	}
	return &bps
}

// PlaceOrder simula el placement. Política de decisión, en este orden:
//  1. FOK sin fill completo → CANCELED, fill cero.
//  2. Slippage calculado por encima del máximo → CANCELED, fill cero.
//     El fill parcial se descarta entero: no aceptamos la parte "buena"
//     de una ejecución que ya rompió el límite de slippage.
//  3. Nada llenado → UNFILLED.
//  4. Fill completo → FILLED.
//  5. Resto → PARTIALLY_FILLED (parcial IOC).
//
// Nunca devuelve error por inputs degenerados: libro vacío o niveles a cero
// resuelven por las mismas ramas.
func (c *DryRunClient) PlaceOrder(_ context.Context, req domain.PlacementRequest) (domain.PlacementResult, error) {
	computed := computeFill(req.Side, req.SizeUSD, req.OrderBook.Bids, req.OrderBook.Asks)
	reference := referencePrice(req.Side, req.OrderBook.BestBid, req.OrderBook.BestAsk)
	slippage := computeSlippageBps(req.Side, reference, computed.avgPrice)
	externalID := "dryrun:" + req.IntentID

	if req.TimeInForce == domain.TIFFillOrKill && !computed.fullyFilled {
		return domain.PlacementResult{
			Status:          domain.IntentCanceled,
			Reason:          domain.ReasonFOKNotFullyFillable,
			ExternalOrderID: externalID,
		}, nil
	}

	if slippage != nil && *slippage > req.MaxSlippageBps {
		return domain.PlacementResult{
			Status:          domain.IntentCanceled,
			SlippageBps:     slippage,
			Reason:          domain.ReasonMaxSlippageExceeded,
			ExternalOrderID: externalID,
		}, nil
	}

	if computed.filledSizeUSD <= 0 {
		return domain.PlacementResult{
			Status:          domain.IntentUnfilled,
			SlippageBps:     slippage,
			Reason:          domain.ReasonNoLiquidity,
			ExternalOrderID: externalID,
		}, nil
	}

	status := domain.IntentPartiallyFilled
	reason := domain.ReasonIOCPartialFill
	if computed.fullyFilled {
		status = domain.IntentFilled
		reason = ""
	}

	return domain.PlacementResult{
		Status:          status,
		FilledSizeUSD:   computed.filledSizeUSD,
		AvgPrice:        computed.avgPrice,
		SlippageBps:     slippage,
		FillCount:       computed.fillCount,
		Reason:          reason,
		ExternalOrderID: externalID,
	}, nil
}

// CancelOrder no tiene nada que cancelar en una simulación.
func (c *DryRunClient) CancelOrder(_ context.Context, _ string) error {
	return nil
}
