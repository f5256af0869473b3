package ports

import (
	"context"
	"errors"

	"github.com/alejandrodnm/vanguard/internal/domain"
)

// ErrIntentExists lo devuelve CreateIntent cuando ya hay una fila con ese ID.
// El insert-or-fail atómico es el contrato de concurrencia: de dos
// orquestaciones compitiendo por el mismo intent, solo una crea la fila.
var ErrIntentExists = errors.New("storage: execution intent already exists")

// ErrIntentNotPending lo devuelve UpdateIntentTerminal cuando la fila no
// existe o ya está en un estado terminal. Un intent terminal nunca se
// sobreescribe.
var ErrIntentNotPending = errors.New("storage: execution intent is not pending")

// IntentStore persiste execution intents. Las escrituras son durables antes
// de devolver: el orquestador depende de ese orden write-ahead.
type IntentStore interface {
	// CreateIntent inserta el intent. Falla con ErrIntentExists si el ID ya existe.
	CreateIntent(ctx context.Context, intent domain.ExecutionIntent) (domain.ExecutionIntent, error)

	// GetIntent devuelve el intent y true si existe.
	GetIntent(ctx context.Context, id string) (domain.ExecutionIntent, bool, error)

	// UpdateIntentTerminal mueve un intent PENDING a su estado terminal con el
	// response serializado y el reason. Falla con ErrIntentNotPending si la
	// fila no está en PENDING.
	UpdateIntentTerminal(ctx context.Context, id string, status domain.IntentStatus, responseJSON, reason string) error
}

// TradeStore persiste fills realizados.
type TradeStore interface {
	// UpsertTrade inserta o reemplaza el trade por ID.
	UpsertTrade(ctx context.Context, trade domain.TradeRecord) error

	// GetTrade devuelve el trade y true si existe.
	GetTrade(ctx context.Context, id string) (domain.TradeRecord, bool, error)
}

// EngineState es el key-value store de configuración runtime. Lo escribe el
// ops layer; el engine solo lee (excepto los endpoints de arm/kill).
type EngineState interface {
	// GetStateRaw devuelve el valor JSON crudo de la key, y false si no existe.
	GetStateRaw(ctx context.Context, key string) (string, bool, error)

	// SetState serializa value como JSON y hace upsert.
	SetState(ctx context.Context, key string, value any) error

	// SetStateIfMissing escribe solo si la key no existe todavía.
	SetStateIfMissing(ctx context.Context, key string, value any) error
}
