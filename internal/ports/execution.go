package ports

import (
	"context"

	"github.com/alejandrodnm/vanguard/internal/domain"
)

// ExecutionClient places and cancels orders. The dry-run simulator is one
// implementation; a live CLOB client would be another. The orchestrator is
// polymorphic over this interface and never cares which one it got.
type ExecutionClient interface {
	// PlaceOrder resolves a placement against the given orderbook snapshot.
	// Implementations must honor ctx cancellation: the orchestrator imposes
	// a hard deadline and will abandon the call when it expires.
	PlaceOrder(ctx context.Context, req domain.PlacementRequest) (domain.PlacementResult, error)

	// CancelOrder best-effort cancels whatever is in flight for the intent.
	CancelOrder(ctx context.Context, intentID string) error
}
