package domain

import (
	"strconv"
	"time"
)

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// OrderBookSnapshot es una foto inmutable del libro de un token en un
// instante. La produce el market-data provider por request; el engine nunca
// la muta.
type OrderBookSnapshot struct {
	MarketID     string
	TokenID      string
	Bids         []BookEntry // ordenados mayor a menor precio
	Asks         []BookEntry // ordenados menor a mayor precio
	BestBid      float64     // 0 si no hay bids
	BestAsk      float64     // 0 si no hay asks
	SpreadBps    float64     // 0 si no se puede calcular
	LiquidityUSD float64     // suma price×size de ambos lados
	Timestamp    time.Time
}

// SpreadBpsBetween devuelve el spread en basis points relativo al best ask.
// Devuelve 0 si alguno de los dos precios no es válido.
func SpreadBpsBetween(bestBid, bestAsk float64) float64 {
	if bestBid <= 0 || bestAsk <= 0 {
		return 0
	}
	return (bestAsk - bestBid) / bestAsk * 10_000
}

// BookLiquidityUSD suma el valor en USD (price × size) de todos los niveles.
func BookLiquidityUSD(bids, asks []BookEntry) float64 {
	var total float64
	for _, b := range bids {
		total += b.Price * b.Size
	}
	for _, a := range asks {
		total += a.Price * a.Size
	}
	return total
}

// TrendingMarket es un mercado candidato devuelto por el provider,
// ya ordenado por volumen.
type TrendingMarket struct {
	MarketID     string
	ConditionID  string
	Question     string
	TokenID      string
	VolumeUSD    float64
	LiquidityUSD float64
	BestBid      float64 // 0 si la API no lo devuelve
	BestAsk      float64 // 0 si la API no lo devuelve
	EndDate      string
}

// ParsePrice convierte un string de precio a float64.
// Usado en el mapping de la API.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
