package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del engine.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Risk    RiskConfig    `yaml:"risk"`
	Safety  SafetyConfig  `yaml:"safety"`
	API     APIConfig     `yaml:"api"`
	Ops     OpsConfig     `yaml:"ops"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig controla el comportamiento del orquestador.
type EngineConfig struct {
	PlacementTimeoutMS int `yaml:"placement_timeout_ms"`
	SweepIntervalMS    int `yaml:"sweep_interval_ms"` // espaciado entre simulaciones en -sweep
}

// RiskConfig son los defaults de los caps de riesgo. El estado runtime en la
// DB los puede sobreescribir vía el ops layer.
type RiskConfig struct {
	MaxUSDPerTrade      float64 `yaml:"max_usd_per_trade"`
	MaxOpenPositions    int     `yaml:"max_open_positions"`
	MaxDailyLossUSD     float64 `yaml:"max_daily_loss_usd"`
	MaxTotalExposureUSD float64 `yaml:"max_total_exposure_usd"`
	MinLiquidityUSD     float64 `yaml:"min_liquidity_usd"`
	MaxSlippageBps      float64 `yaml:"max_slippage_bps"`
	ConfidenceMin       float64 `yaml:"confidence_min"`
	EdgeMinBps          float64 `yaml:"edge_min_bps"`
}

// SafetyConfig son los defaults de los flags de seguridad. Punteros para
// distinguir "no configurado" de "false explícito": dry_run tiene default
// true y un bool plano no podría expresarlo.
type SafetyConfig struct {
	DryRun     *bool `yaml:"dry_run"`
	KillSwitch *bool `yaml:"kill_switch"`
	Armed      *bool `yaml:"armed"`
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
}

// OpsConfig controla el ops server HTTP.
type OpsConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"` // normalmente via VANGUARD_TOKEN, no en el YAML
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Las variables de entorno sobreescriben el YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PlacementTimeout devuelve el timeout de placement como time.Duration.
func (c *Config) PlacementTimeout() time.Duration {
	return time.Duration(c.Engine.PlacementTimeoutMS) * time.Millisecond
}

// SweepInterval devuelve el espaciado mínimo entre simulaciones de un sweep.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Engine.SweepIntervalMS) * time.Millisecond
}

// RiskCaps convierte los defaults del fichero al tipo de dominio.
func (c *Config) RiskCaps() domain.RiskCaps {
	return domain.RiskCaps{
		MaxUSDPerTrade:      c.Risk.MaxUSDPerTrade,
		MaxOpenPositions:    c.Risk.MaxOpenPositions,
		MaxDailyLossUSD:     c.Risk.MaxDailyLossUSD,
		MaxTotalExposureUSD: c.Risk.MaxTotalExposureUSD,
		MinLiquidityUSD:     c.Risk.MinLiquidityUSD,
		MaxSlippageBps:      c.Risk.MaxSlippageBps,
		ConfidenceMin:       c.Risk.ConfidenceMin,
		EdgeMinBps:          c.Risk.EdgeMinBps,
	}
}

// SafetyState convierte los defaults de seguridad al tipo de dominio.
func (c *Config) SafetyState() domain.SafetyState {
	return domain.SafetyState{
		DryRun:     boolOr(c.Safety.DryRun, true),
		KillSwitch: boolOr(c.Safety.KillSwitch, false),
		Armed:      boolOr(c.Safety.Armed, false),
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("VANGUARD_TOKEN"); v != "" {
		cfg.Ops.Token = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("OPS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Ops.Port = port
		}
	}
	if v := os.Getenv("MAX_USD_PER_TRADE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.MaxUSDPerTrade = f
		}
	}
	if v := os.Getenv("MAX_SLIPPAGE_BPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.MaxSlippageBps = f
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los caps de riesgo de fábrica son los de domain.DefaultRiskCaps.
func setDefaults(cfg *Config) {
	if cfg.Engine.PlacementTimeoutMS <= 0 {
		cfg.Engine.PlacementTimeoutMS = 2500
	}
	if cfg.Engine.SweepIntervalMS <= 0 {
		cfg.Engine.SweepIntervalMS = 500
	}
	if cfg.Risk.MaxUSDPerTrade <= 0 {
		cfg.Risk.MaxUSDPerTrade = domain.DefaultRiskCaps.MaxUSDPerTrade
	}
	if cfg.Risk.MaxOpenPositions <= 0 {
		cfg.Risk.MaxOpenPositions = domain.DefaultRiskCaps.MaxOpenPositions
	}
	if cfg.Risk.MaxDailyLossUSD <= 0 {
		cfg.Risk.MaxDailyLossUSD = domain.DefaultRiskCaps.MaxDailyLossUSD
	}
	if cfg.Risk.MaxTotalExposureUSD <= 0 {
		cfg.Risk.MaxTotalExposureUSD = domain.DefaultRiskCaps.MaxTotalExposureUSD
	}
	if cfg.Risk.MinLiquidityUSD <= 0 {
		cfg.Risk.MinLiquidityUSD = domain.DefaultRiskCaps.MinLiquidityUSD
	}
	if cfg.Risk.MaxSlippageBps <= 0 {
		cfg.Risk.MaxSlippageBps = domain.DefaultRiskCaps.MaxSlippageBps
	}
	if cfg.Risk.ConfidenceMin <= 0 {
		cfg.Risk.ConfidenceMin = domain.DefaultRiskCaps.ConfidenceMin
	}
	if cfg.Risk.EdgeMinBps <= 0 {
		cfg.Risk.EdgeMinBps = domain.DefaultRiskCaps.EdgeMinBps
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Ops.Host == "" {
		cfg.Ops.Host = "127.0.0.1"
	}
	if cfg.Ops.Port <= 0 {
		cfg.Ops.Port = 8787
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "vanguard.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
