package domain

import "time"

// TradeSide es la dirección del trade.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// TimeInForce controla qué hacemos con fills parciales.
type TimeInForce string

const (
	TIFImmediateOrCancel TimeInForce = "IOC" // acepta fills parciales
	TIFFillOrKill        TimeInForce = "FOK" // todo o nada
)

// IntentStatus es el estado de un execution intent.
type IntentStatus string

const (
	IntentPending         IntentStatus = "PENDING"
	IntentRejectedRisk    IntentStatus = "REJECTED_RISK"
	IntentFilled          IntentStatus = "FILLED"
	IntentPartiallyFilled IntentStatus = "PARTIALLY_FILLED"
	IntentUnfilled        IntentStatus = "UNFILLED"
	IntentCanceled        IntentStatus = "CANCELED"
	IntentFailed          IntentStatus = "FAILED"
)

// IsTerminal indica si el intent ya resolvió y no debe volver a ejecutarse.
// REJECTED_RISK es terminal aunque nunca se persiste: el rechazo de riesgo
// ocurre antes de crear la fila.
func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentRejectedRisk, IntentFilled, IntentPartiallyFilled,
		IntentUnfilled, IntentCanceled, IntentFailed:
		return true
	}
	return false
}

// ExecutionIntent es la unidad de idempotencia: un registro durable de un
// intento lógico de ejecución, identificado por ID. Se crea en PENDING antes
// de cualquier llamada externa (write-ahead) y muta exactamente una vez más,
// a un estado terminal. Nunca se borra.
type ExecutionIntent struct {
	ID           string
	TS           time.Time
	MarketID     string
	TokenID      string
	Side         TradeSide
	SizeUSD      float64
	TimeInForce  TimeInForce
	DryRun       bool
	Status       IntentStatus
	Reason       string // "" si no hay motivo
	RequestJSON  string
	ResponseJSON string // "" hasta que resuelve
	UpdatedAt    time.Time
}

// TradeRecord es un fill realizado. Solo se escribe cuando filledSizeUsd > 0,
// con ID "{intentId}:fill" — reintentos sobre el mismo intent hacen upsert de
// la misma fila en vez de duplicarla.
type TradeRecord struct {
	ID       string
	TS       time.Time
	MarketID string
	Side     TradeSide
	SizeUSD  float64
	Price    float64
	Status   string
	MetaJSON string
}
