package ports

import (
	"context"

	"github.com/alejandrodnm/vanguard/internal/domain"
)

// RuntimeConfig expone la configuración viva del engine: flags de seguridad,
// caps de riesgo y métricas de cuenta. Cada llamada relee el estado — los
// valores pueden cambiar entre ejecuciones vía el ops layer y el engine debe
// tratarlos como snapshots, nunca cachearlos más allá de un execute().
type RuntimeConfig interface {
	SafetyState(ctx context.Context) (domain.SafetyState, error)
	RiskCaps(ctx context.Context) (domain.RiskCaps, error)
	RiskMetrics(ctx context.Context) (domain.RiskMetrics, error)
}
