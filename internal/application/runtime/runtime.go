// Package runtime resuelve la configuración viva del engine: los defaults del
// proceso con los overrides que el operador haya escrito en engine_state.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/alejandrodnm/vanguard/internal/ports"
)

// Keys del KV engine_state. El ops layer escribe estas mismas keys.
const (
	KeyDryRun     = "DRY_RUN"
	KeyKillSwitch = "KILL_SWITCH"
	KeyArmed      = "ARMED"

	KeyMaxUSDPerTrade      = "MAX_USD_PER_TRADE"
	KeyMaxOpenPositions    = "MAX_OPEN_POSITIONS"
	KeyMaxDailyLossUSD     = "MAX_DAILY_LOSS_USD"
	KeyMaxTotalExposureUSD = "MAX_TOTAL_EXPOSURE_USD"
	KeyMinLiquidityUSD     = "MIN_LIQUIDITY_USD"
	KeyMaxSlippageBps      = "MAX_SLIPPAGE_BPS"
	KeyConfidenceMin       = "CONFIDENCE_MIN"
	KeyEdgeMinBps          = "EDGE_MIN_BPS"

	KeyMetricOpenPositions    = "METRIC_OPEN_POSITIONS"
	KeyMetricDailyLossUSD     = "METRIC_DAILY_LOSS_USD"
	KeyMetricTotalExposureUSD = "METRIC_TOTAL_EXPOSURE_USD"
)

// Compile-time interface check.
var _ ports.RuntimeConfig = (*Loader)(nil)

// Loader implementa ports.RuntimeConfig sobre el KV engine_state. Cada lectura
// parte de los defaults y aplica los overrides presentes; una key ausente no
// es error, una key corrupta sí.
type Loader struct {
	state         ports.EngineState
	defaultSafety domain.SafetyState
	defaultCaps   domain.RiskCaps
}

// NewLoader crea el loader con los defaults del proceso (normalmente los del
// fichero de configuración).
func NewLoader(state ports.EngineState, defaultSafety domain.SafetyState, defaultCaps domain.RiskCaps) *Loader {
	return &Loader{
		state:         state,
		defaultSafety: defaultSafety,
		defaultCaps:   defaultCaps,
	}
}

// Seed escribe los defaults en engine_state sin pisar keys existentes, para
// que el operador vea (y pueda editar) el estado completo desde el ops layer.
func (l *Loader) Seed(ctx context.Context) error {
	seeds := map[string]any{
		KeyDryRun:     l.defaultSafety.DryRun,
		KeyKillSwitch: l.defaultSafety.KillSwitch,
		KeyArmed:      l.defaultSafety.Armed,

		KeyMaxUSDPerTrade:      l.defaultCaps.MaxUSDPerTrade,
		KeyMaxOpenPositions:    l.defaultCaps.MaxOpenPositions,
		KeyMaxDailyLossUSD:     l.defaultCaps.MaxDailyLossUSD,
		KeyMaxTotalExposureUSD: l.defaultCaps.MaxTotalExposureUSD,
		KeyMinLiquidityUSD:     l.defaultCaps.MinLiquidityUSD,
		KeyMaxSlippageBps:      l.defaultCaps.MaxSlippageBps,
		KeyConfidenceMin:       l.defaultCaps.ConfidenceMin,
		KeyEdgeMinBps:          l.defaultCaps.EdgeMinBps,

		KeyMetricOpenPositions:    0,
		KeyMetricDailyLossUSD:     0.0,
		KeyMetricTotalExposureUSD: 0.0,
	}
	for key, value := range seeds {
		if err := l.state.SetStateIfMissing(ctx, key, value); err != nil {
			return fmt.Errorf("runtime.Seed: %s: %w", key, err)
		}
	}
	return nil
}

// SafetyState lee los flags de seguridad.
func (l *Loader) SafetyState(ctx context.Context) (domain.SafetyState, error) {
	r := &stateReader{ctx: ctx, state: l.state}
	safety := domain.SafetyState{
		DryRun:     r.boolean(KeyDryRun, l.defaultSafety.DryRun),
		KillSwitch: r.boolean(KeyKillSwitch, l.defaultSafety.KillSwitch),
		Armed:      r.boolean(KeyArmed, l.defaultSafety.Armed),
	}
	if r.err != nil {
		return domain.SafetyState{}, fmt.Errorf("runtime.SafetyState: %w", r.err)
	}
	return safety, nil
}

// RiskCaps lee los límites de riesgo.
func (l *Loader) RiskCaps(ctx context.Context) (domain.RiskCaps, error) {
	r := &stateReader{ctx: ctx, state: l.state}
	caps := domain.RiskCaps{
		MaxUSDPerTrade:      r.number(KeyMaxUSDPerTrade, l.defaultCaps.MaxUSDPerTrade),
		MaxOpenPositions:    int(r.number(KeyMaxOpenPositions, float64(l.defaultCaps.MaxOpenPositions))),
		MaxDailyLossUSD:     r.number(KeyMaxDailyLossUSD, l.defaultCaps.MaxDailyLossUSD),
		MaxTotalExposureUSD: r.number(KeyMaxTotalExposureUSD, l.defaultCaps.MaxTotalExposureUSD),
		MinLiquidityUSD:     r.number(KeyMinLiquidityUSD, l.defaultCaps.MinLiquidityUSD),
		MaxSlippageBps:      r.number(KeyMaxSlippageBps, l.defaultCaps.MaxSlippageBps),
		ConfidenceMin:       r.number(KeyConfidenceMin, l.defaultCaps.ConfidenceMin),
		EdgeMinBps:          r.number(KeyEdgeMinBps, l.defaultCaps.EdgeMinBps),
	}
	if r.err != nil {
		return domain.RiskCaps{}, fmt.Errorf("runtime.RiskCaps: %w", r.err)
	}
	return caps, nil
}

// RiskMetrics lee las métricas de cuenta. Sin key, la métrica es cero — el
// engine arranca asumiendo cuenta limpia hasta que alguien escriba lo
// contrario.
func (l *Loader) RiskMetrics(ctx context.Context) (domain.RiskMetrics, error) {
	r := &stateReader{ctx: ctx, state: l.state}
	metrics := domain.RiskMetrics{
		OpenPositions:    int(r.number(KeyMetricOpenPositions, 0)),
		DailyLossUSD:     r.number(KeyMetricDailyLossUSD, 0),
		TotalExposureUSD: r.number(KeyMetricTotalExposureUSD, 0),
	}
	if r.err != nil {
		return domain.RiskMetrics{}, fmt.Errorf("runtime.RiskMetrics: %w", r.err)
	}
	return metrics, nil
}

// stateReader acumula el primer error y deja que el caller componga varias
// lecturas sin un `if err` por campo.
type stateReader struct {
	ctx   context.Context
	state ports.EngineState
	err   error
}

func (r *stateReader) boolean(key string, def bool) bool {
	raw, found := r.fetch(key)
	if r.err != nil || !found {
		return def
	}
	v, err := coerceBool(raw)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return def
	}
	return v
}

func (r *stateReader) number(key string, def float64) float64 {
	raw, found := r.fetch(key)
	if r.err != nil || !found {
		return def
	}
	v, err := coerceNumber(raw)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return def
	}
	return v
}

func (r *stateReader) fetch(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	raw, found, err := r.state.GetStateRaw(r.ctx, key)
	if err != nil {
		r.err = err
		return "", false
	}
	return raw, found
}

// coerceBool acepta bool JSON, números (≠0 es true) y los strings habituales
// de los operadores ("true"/"1"/"yes"/"on" y sus negaciones).
func coerceBool(raw string) (bool, error) {
	var b bool
	if err := json.Unmarshal([]byte(raw), &b); err == nil {
		return b, nil
	}
	var n float64
	if err := json.Unmarshal([]byte(raw), &n); err == nil {
		return n != 0, nil
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off", "":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean %q", s)
	}
	return false, fmt.Errorf("invalid boolean value %q", raw)
}

// coerceNumber acepta números JSON y strings numéricos.
func coerceNumber(raw string) (float64, error) {
	var n float64
	if err := json.Unmarshal([]byte(raw), &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", s)
		}
		return v, nil
	}
	return 0, fmt.Errorf("invalid numeric value %q", raw)
}
