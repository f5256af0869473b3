package domain

import "fmt"

// RiskCaps son los límites de riesgo del engine. Inmutables durante una
// evaluación: el caller los carga una vez y el motor nunca los modifica.
type RiskCaps struct {
	MaxUSDPerTrade      float64
	MaxOpenPositions    int
	MaxDailyLossUSD     float64
	MaxTotalExposureUSD float64
	MinLiquidityUSD     float64
	MaxSlippageBps      float64
	ConfidenceMin       float64
	EdgeMinBps          float64
}

// DefaultRiskCaps son los límites conservadores de fábrica.
var DefaultRiskCaps = RiskCaps{
	MaxUSDPerTrade:      100,
	MaxOpenPositions:    5,
	MaxDailyLossUSD:     250,
	MaxTotalExposureUSD: 1000,
	MinLiquidityUSD:     10_000,
	MaxSlippageBps:      50,
	ConfidenceMin:       0.85,
	EdgeMinBps:          100,
}

// RiskViolationCode identifica el límite concreto que se ha violado.
type RiskViolationCode string

const (
	ViolationMaxUSDPerTrade      RiskViolationCode = "MAX_USD_PER_TRADE"
	ViolationMaxOpenPositions    RiskViolationCode = "MAX_OPEN_POSITIONS"
	ViolationMaxDailyLossUSD     RiskViolationCode = "MAX_DAILY_LOSS_USD"
	ViolationMaxTotalExposureUSD RiskViolationCode = "MAX_TOTAL_EXPOSURE_USD"
	ViolationMinLiquidityUSD     RiskViolationCode = "MIN_LIQUIDITY_USD"
	ViolationMaxSlippageBps      RiskViolationCode = "MAX_SLIPPAGE_BPS"
	ViolationConfidenceMin       RiskViolationCode = "CONFIDENCE_MIN"
	ViolationEdgeMinBps          RiskViolationCode = "EDGE_MIN_BPS"
)

// RiskViolation es un límite violado, con el valor observado y el límite.
type RiskViolation struct {
	Code    RiskViolationCode `json:"code"`
	Message string            `json:"message"`
	Actual  float64           `json:"actual"`
	Limit   float64           `json:"limit"`
}

// RiskMetrics es el estado actual de la cuenta que alimenta la evaluación.
type RiskMetrics struct {
	OpenPositions    int
	DailyLossUSD     float64
	TotalExposureUSD float64
}

// SafetyState son los flags globales de seguridad del engine. Se leen como
// snapshot al inicio de cada ejecución — pueden quedar desfasados si el ops
// layer los cambia a mitad de vuelo, y eso es aceptable.
type SafetyState struct {
	DryRun     bool
	KillSwitch bool
	Armed      bool
}

// RiskEvaluationInput agrupa todos los datos de una evaluación de riesgo.
type RiskEvaluationInput struct {
	Caps                 RiskCaps
	TradeSizeUSD         float64
	OpenPositions        int
	DailyLossUSD         float64
	TotalExposureUSD     float64
	MarketLiquidityUSD   float64
	EstimatedSlippageBps float64
	Confidence           float64
	EdgeBps              float64
}

// RiskEvaluationResult es el veredicto de la evaluación. Violations mantiene
// el orden fijo de los ocho checks para que el resultado sea determinista.
type RiskEvaluationResult struct {
	Allowed              bool            `json:"allowed"`
	Violations           []RiskViolation `json:"violations"`
	ProjectedExposureUSD float64         `json:"projectedExposureUsd"`
}

// EvaluateRisk evalúa los ocho límites en orden fijo y acumula todas las
// violaciones — nunca corta en la primera. Pura: sin I/O ni efectos.
// ProjectedExposureUSD se calcula siempre, permita o no la operación.
func EvaluateRisk(in RiskEvaluationInput) RiskEvaluationResult {
	var violations []RiskViolation

	add := func(code RiskViolationCode, msg string, actual, limit float64) {
		violations = append(violations, RiskViolation{
			Code:    code,
			Message: msg,
			Actual:  actual,
			Limit:   limit,
		})
	}

	if in.TradeSizeUSD > in.Caps.MaxUSDPerTrade {
		add(ViolationMaxUSDPerTrade,
			"Trade size exceeds MAX_USD_PER_TRADE",
			in.TradeSizeUSD, in.Caps.MaxUSDPerTrade)
	}

	// Se cuenta la posición que abriría este trade
	projectedOpen := in.OpenPositions + 1
	if projectedOpen > in.Caps.MaxOpenPositions {
		add(ViolationMaxOpenPositions,
			"Projected open positions exceed MAX_OPEN_POSITIONS",
			float64(projectedOpen), float64(in.Caps.MaxOpenPositions))
	}

	if in.DailyLossUSD > in.Caps.MaxDailyLossUSD {
		add(ViolationMaxDailyLossUSD,
			"Daily loss exceeds MAX_DAILY_LOSS_USD",
			in.DailyLossUSD, in.Caps.MaxDailyLossUSD)
	}

	projectedExposure := in.TotalExposureUSD + in.TradeSizeUSD
	if projectedExposure > in.Caps.MaxTotalExposureUSD {
		add(ViolationMaxTotalExposureUSD,
			"Projected exposure exceeds MAX_TOTAL_EXPOSURE_USD",
			projectedExposure, in.Caps.MaxTotalExposureUSD)
	}

	if in.MarketLiquidityUSD < in.Caps.MinLiquidityUSD {
		add(ViolationMinLiquidityUSD,
			"Market liquidity is below MIN_LIQUIDITY_USD",
			in.MarketLiquidityUSD, in.Caps.MinLiquidityUSD)
	}

	if in.EstimatedSlippageBps > in.Caps.MaxSlippageBps {
		add(ViolationMaxSlippageBps,
			"Estimated slippage exceeds MAX_SLIPPAGE_BPS",
			in.EstimatedSlippageBps, in.Caps.MaxSlippageBps)
	}

	if in.Confidence < in.Caps.ConfidenceMin {
		add(ViolationConfidenceMin,
			"Confidence is below CONFIDENCE_MIN",
			in.Confidence, in.Caps.ConfidenceMin)
	}

	if in.EdgeBps < in.Caps.EdgeMinBps {
		add(ViolationEdgeMinBps,
			"Edge is below EDGE_MIN_BPS",
			in.EdgeBps, in.Caps.EdgeMinBps)
	}

	return RiskEvaluationResult{
		Allowed:              len(violations) == 0,
		Violations:           violations,
		ProjectedExposureUSD: projectedExposure,
	}
}

// Summary devuelve un resumen compacto tipo "2 violations: MAX_USD_PER_TRADE, …"
// para logging.
func (r RiskEvaluationResult) Summary() string {
	if r.Allowed {
		return "allowed"
	}
	s := fmt.Sprintf("%d violations:", len(r.Violations))
	for i, v := range r.Violations {
		if i > 0 {
			s += ","
		}
		s += " " + string(v.Code)
	}
	return s
}
