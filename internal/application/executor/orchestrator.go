// Package executor contiene la orquestación de ejecuciones: gate de riesgo,
// idempotencia por intent y placement con deadline duro.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/alejandrodnm/vanguard/internal/ports"
	"github.com/google/uuid"
)

const (
	// DefaultPlacementTimeout limita la llamada al execution client.
	DefaultPlacementTimeout = 2500 * time.Millisecond

	// cancelTimeout acota el best-effort cancel tras un timeout de placement.
	cancelTimeout = time.Second
)

// Orchestrator ejecuta trade requests con las garantías de la máquina de
// estados de intents: riesgo antes de persistir, una fila PENDING write-ahead
// antes de llamar fuera, y exactamente una transición terminal.
type Orchestrator struct {
	logger           *slog.Logger
	runtime          ports.RuntimeConfig
	intents          ports.IntentStore
	trades           ports.TradeStore
	client           ports.ExecutionClient
	placementTimeout time.Duration

	newID func() string
	now   func() time.Time
}

// NewOrchestrator cablea el orquestador. Un placementTimeout <= 0 usa el
// default.
func NewOrchestrator(
	logger *slog.Logger,
	runtime ports.RuntimeConfig,
	intents ports.IntentStore,
	trades ports.TradeStore,
	client ports.ExecutionClient,
	placementTimeout time.Duration,
) *Orchestrator {
	if placementTimeout <= 0 {
		placementTimeout = DefaultPlacementTimeout
	}
	return &Orchestrator{
		logger:           logger,
		runtime:          runtime,
		intents:          intents,
		trades:           trades,
		client:           client,
		placementTimeout: placementTimeout,
		newID:            uuid.NewString,
		now:              time.Now,
	}
}

// Execute corre una trade request de punta a punta. Los fallos del placement
// resuelven como resultado FAILED, no como error: el error de retorno queda
// para fallos de infraestructura (storage, runtime config) donde no hay
// resultado coherente que devolver.
//
// Orden de los pasos: nada muta estado persistido hasta que el riesgo pasó y
// el intent quedó en PENDING. Un reinicio a mitad de vuelo siempre encuentra
// una fila PENDING recuperable o una terminal, nunca un placement sin fila.
func (o *Orchestrator) Execute(ctx context.Context, req domain.TradeExecutionRequest) (domain.TradeExecutionResult, error) {
	safety, err := o.runtime.SafetyState(ctx)
	if err != nil {
		return domain.TradeExecutionResult{}, fmt.Errorf("executor.Execute: read safety state: %w", err)
	}

	// Este orquestador solo opera en simulado. Sin dry-run no hay nada que
	// hacer — y no se toca ni el riesgo ni la tabla de intents.
	if !safety.DryRun {
		o.logger.Warn("execution rejected: dry-run disabled")
		return domain.TradeExecutionResult{
			Status: domain.IntentFailed,
			Reason: domain.ReasonDryRunDisabled,
		}, nil
	}

	caps, err := o.runtime.RiskCaps(ctx)
	if err != nil {
		return domain.TradeExecutionResult{}, fmt.Errorf("executor.Execute: read risk caps: %w", err)
	}
	metrics, err := o.runtime.RiskMetrics(ctx)
	if err != nil {
		return domain.TradeExecutionResult{}, fmt.Errorf("executor.Execute: read risk metrics: %w", err)
	}

	risk := domain.EvaluateRisk(domain.RiskEvaluationInput{
		Caps:                 caps,
		TradeSizeUSD:         req.SizeUSD,
		OpenPositions:        metrics.OpenPositions,
		DailyLossUSD:         metrics.DailyLossUSD,
		TotalExposureUSD:     metrics.TotalExposureUSD,
		MarketLiquidityUSD:   req.OrderBook.LiquidityUSD,
		EstimatedSlippageBps: max(req.OrderBook.SpreadBps, 0),
		Confidence:           req.Confidence,
		EdgeBps:              req.EdgeBps,
	})
	if !risk.Allowed {
		o.logger.Warn("execution rejected by risk limits",
			"market", req.MarketID,
			"sizeUsd", req.SizeUSD,
			"risk", risk.Summary(),
		)
		// Rechazo sin fila: los reintentos vuelven a evaluar riesgo, no hay
		// nada persistido que cortocircuitar.
		return domain.TradeExecutionResult{
			Risk:   risk,
			Status: domain.IntentRejectedRisk,
			Reason: domain.ReasonRiskLimitsFailed,
		}, nil
	}

	intentID := req.ExecutionIntentID
	if intentID == "" {
		intentID = o.newID()
	}

	if existing, found, err := o.intents.GetIntent(ctx, intentID); err != nil {
		return domain.TradeExecutionResult{}, fmt.Errorf("executor.Execute: lookup intent %s: %w", intentID, err)
	} else if found {
		return o.resolveExisting(intentID, existing, risk), nil
	}

	requestJSON, err := json.Marshal(req)
	if err != nil {
		return domain.TradeExecutionResult{}, fmt.Errorf("executor.Execute: marshal request: %w", err)
	}

	tif := req.TimeInForce
	if tif == "" {
		tif = domain.TIFImmediateOrCancel
	}

	_, err = o.intents.CreateIntent(ctx, domain.ExecutionIntent{
		ID:          intentID,
		TS:          o.now().UTC(),
		MarketID:    req.MarketID,
		TokenID:     req.TokenID,
		Side:        req.Side,
		SizeUSD:     req.SizeUSD,
		TimeInForce: tif,
		DryRun:      true,
		Status:      domain.IntentPending,
		RequestJSON: string(requestJSON),
	})
	if err == ports.ErrIntentExists {
		// Perdimos la carrera del insert. El ganador es dueño del placement;
		// releemos y devolvemos lo que haya.
		existing, found, err := o.intents.GetIntent(ctx, intentID)
		if err != nil || !found {
			return domain.TradeExecutionResult{}, fmt.Errorf("executor.Execute: reread intent %s after race: %w", intentID, err)
		}
		return o.resolveExisting(intentID, existing, risk), nil
	}
	if err != nil {
		return domain.TradeExecutionResult{}, fmt.Errorf("executor.Execute: create intent %s: %w", intentID, err)
	}

	placement, err := o.place(ctx, intentID, req, tif, caps.MaxSlippageBps)
	if err != nil {
		return o.failIntent(ctx, intentID, risk, err)
	}

	responseJSON, err := json.Marshal(placement)
	if err != nil {
		return o.failIntent(ctx, intentID, risk, fmt.Errorf("marshal placement: %w", err))
	}
	if err := o.intents.UpdateIntentTerminal(ctx, intentID, placement.Status, string(responseJSON), placement.Reason); err != nil {
		return domain.TradeExecutionResult{}, fmt.Errorf("executor.Execute: close intent %s: %w", intentID, err)
	}

	if placement.FilledSizeUSD > 0 && placement.AvgPrice != nil {
		if err := o.recordTrade(ctx, intentID, req, placement); err != nil {
			return domain.TradeExecutionResult{}, fmt.Errorf("executor.Execute: record trade %s: %w", intentID, err)
		}
	}

	o.logger.Info("execution resolved",
		"intentId", intentID,
		"market", req.MarketID,
		"status", string(placement.Status),
		"filledSizeUsd", placement.FilledSizeUSD,
	)

	return domain.TradeExecutionResult{
		IntentID:  intentID,
		Placement: &placement,
		Risk:      risk,
		Status:    placement.Status,
		Reason:    placement.Reason,
	}, nil
}

// resolveExisting traduce una fila existente a resultado. Terminal →
// short-circuit idempotente sin tocar el client. PENDING → otra orquestación
// (o un proceso caído) es dueña del placement; devolvemos PENDING y el caller
// reintenta más tarde con el mismo ID.
func (o *Orchestrator) resolveExisting(intentID string, existing domain.ExecutionIntent, risk domain.RiskEvaluationResult) domain.TradeExecutionResult {
	if existing.Status.IsTerminal() {
		o.logger.Info("execution short-circuited by existing intent",
			"intentId", intentID,
			"status", string(existing.Status),
		)
	}
	return domain.TradeExecutionResult{
		IntentID: intentID,
		Risk:     risk,
		Status:   existing.Status,
		Reason:   existing.Reason,
	}
}

// place llama al client bajo deadline duro. Si el deadline vence, intenta
// cancelar lo que esté en vuelo antes de propagar el timeout — sobre un
// contexto nuevo, porque el original ya está muerto.
func (o *Orchestrator) place(ctx context.Context, intentID string, req domain.TradeExecutionRequest, tif domain.TimeInForce, maxSlippageBps float64) (domain.PlacementResult, error) {
	placeCtx, cancel := context.WithTimeout(ctx, o.placementTimeout)
	defer cancel()

	placement, err := o.client.PlaceOrder(placeCtx, domain.PlacementRequest{
		IntentID:       intentID,
		MarketID:       req.MarketID,
		TokenID:        req.TokenID,
		Side:           req.Side,
		SizeUSD:        req.SizeUSD,
		TimeInForce:    tif,
		OrderBook:      req.OrderBook,
		MaxSlippageBps: maxSlippageBps,
	})
	if err == nil {
		return placement, nil
	}

	if placeCtx.Err() != nil {
		cancelCtx, cancelCancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
		defer cancelCancel()
		if cancelErr := o.client.CancelOrder(cancelCtx, intentID); cancelErr != nil {
			o.logger.Warn("best-effort cancel failed",
				"intentId", intentID,
				"error", cancelErr,
			)
		}
		return domain.PlacementResult{}, fmt.Errorf("placement timed out after %s: %w", o.placementTimeout, err)
	}
	return domain.PlacementResult{}, fmt.Errorf("placement failed: %w", err)
}

// failIntent cierra el intent como FAILED con el mensaje de error y devuelve
// el resultado FAILED. El error original no se propaga: ya quedó resuelto en
// la fila.
func (o *Orchestrator) failIntent(ctx context.Context, intentID string, risk domain.RiskEvaluationResult, cause error) (domain.TradeExecutionResult, error) {
	o.logger.Error("execution failed",
		"intentId", intentID,
		"error", cause,
	)
	if err := o.intents.UpdateIntentTerminal(ctx, intentID, domain.IntentFailed, "", cause.Error()); err != nil {
		return domain.TradeExecutionResult{}, fmt.Errorf("executor.Execute: fail intent %s: %w", intentID, err)
	}
	return domain.TradeExecutionResult{
		IntentID: intentID,
		Risk:     risk,
		Status:   domain.IntentFailed,
		Reason:   cause.Error(),
	}, nil
}

// recordTrade hace upsert del fill con ID determinista {intentId}:fill — un
// reintento sobre el mismo intent reescribe la misma fila en vez de duplicar.
func (o *Orchestrator) recordTrade(ctx context.Context, intentID string, req domain.TradeExecutionRequest, placement domain.PlacementResult) error {
	meta, err := json.Marshal(map[string]any{
		"intentId":    intentID,
		"tokenId":     req.TokenID,
		"slippageBps": placement.SlippageBps,
		"fillCount":   placement.FillCount,
		"reason":      placement.Reason,
	})
	if err != nil {
		return fmt.Errorf("marshal trade meta: %w", err)
	}

	return o.trades.UpsertTrade(ctx, domain.TradeRecord{
		ID:       intentID + ":fill",
		TS:       o.now().UTC(),
		MarketID: req.MarketID,
		Side:     req.Side,
		SizeUSD:  placement.FilledSizeUSD,
		Price:    *placement.AvgPrice,
		Status:   "DRY_RUN_" + string(placement.Status),
		MetaJSON: string(meta),
	})
}
