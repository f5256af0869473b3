package domain

// Reason codes que viajan en intents, trades y resultados. Strings estables:
// se persisten en la DB y los consume el ops layer.
const (
	ReasonDryRunDisabled      = "DRY_RUN_DISABLED_FOR_PHASE3"
	ReasonRiskLimitsFailed    = "RISK_LIMITS_FAILED"
	ReasonFOKNotFullyFillable = "FOK_NOT_FULLY_FILLABLE"
	ReasonMaxSlippageExceeded = "MAX_SLIPPAGE_EXCEEDED"
	ReasonNoLiquidity         = "NO_LIQUIDITY"
	ReasonIOCPartialFill      = "IOC_PARTIAL_FILL"
)

// PlacementRequest es lo que el orquestador entrega al execution client.
type PlacementRequest struct {
	IntentID       string            `json:"intentId"`
	MarketID       string            `json:"marketId"`
	TokenID        string            `json:"tokenId"`
	Side           TradeSide         `json:"side"`
	SizeUSD        float64           `json:"sizeUsd"`
	TimeInForce    TimeInForce       `json:"timeInForce"`
	OrderBook      OrderBookSnapshot `json:"-"`
	MaxSlippageBps float64           `json:"maxSlippageBps"`
}

// PlacementResult es el resultado de un placement resuelto. AvgPrice y
// SlippageBps son punteros porque pueden no existir (libro vacío, referencia
// inválida) y esa ausencia se serializa como null en el response snapshot.
type PlacementResult struct {
	Status          IntentStatus `json:"status"` // FILLED | PARTIALLY_FILLED | UNFILLED | CANCELED
	FilledSizeUSD   float64      `json:"filledSizeUsd"`
	AvgPrice        *float64     `json:"avgPrice"`
	SlippageBps     *float64     `json:"slippageBps"`
	FillCount       int          `json:"fillCount"`
	Reason          string       `json:"reason,omitempty"`
	ExternalOrderID string       `json:"externalOrderId"`
}

// TradeExecutionRequest es una propuesta de trade para el orquestador.
// ExecutionIntentID es opcional: si viene vacío se genera uno nuevo, pero un
// caller que reintenta debe repetir el mismo ID para obtener idempotencia.
type TradeExecutionRequest struct {
	MarketID          string            `json:"marketId"`
	TokenID           string            `json:"tokenId"`
	Side              TradeSide         `json:"side"`
	SizeUSD           float64           `json:"sizeUsd"`
	Confidence        float64           `json:"confidence"`
	EdgeBps           float64           `json:"edgeBps"`
	TimeInForce       TimeInForce       `json:"timeInForce,omitempty"`
	OrderBook         OrderBookSnapshot `json:"-"`
	ExecutionIntentID string            `json:"executionIntentId,omitempty"`
}

// TradeExecutionResult es el resultado visible de una ejecución. Placement es
// nil cuando nunca se llegó a llamar al client (rechazo de riesgo, dry-run
// deshabilitado, short-circuit idempotente).
type TradeExecutionResult struct {
	IntentID  string               `json:"intentId,omitempty"`
	Placement *PlacementResult     `json:"placement"`
	Risk      RiskEvaluationResult `json:"risk"`
	Status    IntentStatus         `json:"status"`
	Reason    string               `json:"reason,omitempty"`
}
