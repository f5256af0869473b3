package polymarket

import "encoding/json"

// DTOs raw de la API. Solo se usan dentro de este paquete; la conversión a
// domain entities vive en mapping.go.

// --- Gamma API ---

// gammaMarket es un mercado de GET /markets de Gamma. Algunos campos
// numéricos llegan como strings JSON, usamos json.Number. ClobTokenIDs es un
// array JSON codificado dentro de un string.
type gammaMarket struct {
	ID           string      `json:"id"`
	ConditionID  string      `json:"conditionId"`
	Question     string      `json:"question"`
	Slug         string      `json:"slug"`
	EndDateISO   string      `json:"endDateIso"`
	Volume24h    json.Number `json:"volume24hr"`
	Liquidity    json.Number `json:"liquidity"`
	BestBid      json.Number `json:"bestBid"`
	BestAsk      json.Number `json:"bestAsk"`
	ClobTokenIDs string      `json:"clobTokenIds"`
	Active       bool        `json:"active"`
	Closed       bool        `json:"closed"`
}

// --- CLOB API ---

// bookResponse es la respuesta de GET /book. Precios y tamaños llegan como
// strings para no perder precisión.
type bookResponse struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Timestamp string         `json:"timestamp"` // epoch millis como string
	Bids      []bookEntryRaw `json:"bids"`
	Asks      []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API.
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
