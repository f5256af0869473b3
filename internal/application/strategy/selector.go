// Package strategy selecciona mercados candidatos para simular ejecuciones.
package strategy

import (
	"sort"

	"github.com/alejandrodnm/vanguard/internal/domain"
)

// Candidate es un mercado rankeado para ejecución. Score combina volumen y
// liquidez penalizando spreads anchos: un mercado muy líquido con spread
// estrecho es el mejor sitio para probar el pipeline.
type Candidate struct {
	Market    domain.TrendingMarket
	SpreadBps float64
	Score     float64
}

// TopCandidates rankea los mercados y devuelve los n mejores. Mercados sin
// precios (best bid/ask a 0) quedan al final: sin spread no hay forma de
// estimar el coste de entrar.
func TopCandidates(markets []domain.TrendingMarket, n int) []Candidate {
	candidates := make([]Candidate, 0, len(markets))
	for _, m := range markets {
		spread := domain.SpreadBpsBetween(m.BestBid, m.BestAsk)
		candidates = append(candidates, Candidate{
			Market:    m,
			SpreadBps: spread,
			Score:     score(m, spread),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// score pondera volumen y liquidez, y divide por el spread. El +1 evita la
// división por cero en libros cruzados o sin precios.
func score(m domain.TrendingMarket, spreadBps float64) float64 {
	if m.BestBid <= 0 || m.BestAsk <= 0 {
		return 0
	}
	return (m.VolumeUSD + m.LiquidityUSD) / (spreadBps + 1)
}
