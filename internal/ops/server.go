// Package ops expone la superficie administrativa del engine sobre HTTP:
// estado, flags de seguridad, configuración runtime y simulaciones manuales.
// Todo detrás de un token compartido — esto es un panel de operador, no una
// API pública.
package ops

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alejandrodnm/vanguard/internal/application/executor"
	"github.com/alejandrodnm/vanguard/internal/application/runtime"
	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/alejandrodnm/vanguard/internal/ports"
)

// AuthHeader lleva el token compartido del operador.
const AuthHeader = "X-Vanguard-Token"

// configKeys es el allowlist de keys editables vía /ops/config. Cualquier
// otra key se rechaza: el KV también guarda estado interno que el operador
// no debe tocar a mano.
var configKeys = map[string]bool{
	runtime.KeyMaxUSDPerTrade:         true,
	runtime.KeyMaxOpenPositions:       true,
	runtime.KeyMaxDailyLossUSD:        true,
	runtime.KeyMaxTotalExposureUSD:    true,
	runtime.KeyMinLiquidityUSD:        true,
	runtime.KeyMaxSlippageBps:         true,
	runtime.KeyConfidenceMin:          true,
	runtime.KeyEdgeMinBps:             true,
	runtime.KeyMetricOpenPositions:    true,
	runtime.KeyMetricDailyLossUSD:     true,
	runtime.KeyMetricTotalExposureUSD: true,
}

// Server es el ops server. No arranca nada por sí mismo: Handler() se monta
// en el http.Server del main.
type Server struct {
	logger  *slog.Logger
	state   ports.EngineState
	runtime ports.RuntimeConfig
	sim     *executor.Simulator
	token   string
}

// NewServer cablea el ops server. El token no puede ser vacío: un panel de
// operador sin auth es una pistola cargada.
func NewServer(logger *slog.Logger, state ports.EngineState, rt ports.RuntimeConfig, sim *executor.Simulator, token string) (*Server, error) {
	if token == "" {
		return nil, errors.New("ops.NewServer: empty auth token")
	}
	return &Server{
		logger:  logger,
		state:   state,
		runtime: rt,
		sim:     sim,
		token:   token,
	}, nil
}

// Handler devuelve el handler con todas las rutas montadas tras el auth.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ops/status", s.handleStatus)
	mux.HandleFunc("POST /ops/arm", s.setFlag(runtime.KeyArmed, true))
	mux.HandleFunc("POST /ops/disarm", s.setFlag(runtime.KeyArmed, false))
	mux.HandleFunc("POST /ops/kill", s.setFlag(runtime.KeyKillSwitch, true))
	mux.HandleFunc("POST /ops/unkill", s.setFlag(runtime.KeyKillSwitch, false))
	mux.HandleFunc("GET /ops/config", s.handleGetConfig)
	mux.HandleFunc("POST /ops/config", s.handleSetConfig)
	mux.HandleFunc("POST /ops/simulate-trade", s.handleSimulate)
	return s.auth(mux)
}

// auth corta cualquier request sin el token correcto. Comparación en tiempo
// constante — el token viaja en claro por la red local, pero al menos no se
// filtra por timing.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(AuthHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			s.writeError(w, http.StatusUnauthorized, errors.New("invalid or missing token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	safety, err := s.runtime.SafetyState(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	caps, err := s.runtime.RiskCaps(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	metrics, err := s.runtime.RiskMetrics(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeOK(w, map[string]any{
		"safety": map[string]bool{
			"dryRun":     safety.DryRun,
			"killSwitch": safety.KillSwitch,
			"armed":      safety.Armed,
		},
		"riskCaps": capsPayload(caps),
		"riskMetrics": map[string]any{
			"openPositions":    metrics.OpenPositions,
			"dailyLossUsd":     metrics.DailyLossUSD,
			"totalExposureUsd": metrics.TotalExposureUSD,
		},
	})
}

// setFlag fabrica los handlers de arm/disarm/kill/unkill.
func (s *Server) setFlag(key string, value bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.state.SetState(r.Context(), key, value); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.logger.Info("safety flag updated", "key", key, "value", value)
		s.writeOK(w, map[string]any{key: value})
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	caps, err := s.runtime.RiskCaps(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeOK(w, map[string]any{"riskCaps": capsPayload(caps)})
}

// handleSetConfig acepta un objeto plano key → valor. Solo keys del
// allowlist; los valores se guardan tal cual llegan y la coerción ocurre en
// la lectura.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if len(updates) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("empty config update"))
		return
	}

	for key := range updates {
		if !configKeys[key] {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown config key %q", key))
			return
		}
	}

	for key, value := range updates {
		if err := s.state.SetState(r.Context(), key, value); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	s.logger.Info("runtime config updated", "keys", len(updates))
	s.writeOK(w, map[string]any{"updated": len(updates)})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var params executor.SimulationParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	result, err := s.sim.Simulate(r.Context(), params)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeOK(w, map[string]any{"result": result})
}

// --- respuestas ---

func (s *Server) writeOK(w http.ResponseWriter, payload map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": err.Error(),
	})
}

func capsPayload(caps domain.RiskCaps) map[string]any {
	return map[string]any{
		"maxUsdPerTrade":      caps.MaxUSDPerTrade,
		"maxOpenPositions":    caps.MaxOpenPositions,
		"maxDailyLossUsd":     caps.MaxDailyLossUSD,
		"maxTotalExposureUsd": caps.MaxTotalExposureUSD,
		"minLiquidityUsd":     caps.MinLiquidityUSD,
		"maxSlippageBps":      caps.MaxSlippageBps,
		"confidenceMin":       caps.ConfidenceMin,
		"edgeMinBps":          caps.EdgeMinBps,
	}
}
