package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimitedQueue serializa tareas en orden FIFO estricto y garantiza un
// intervalo mínimo entre los *inicios* de tareas consecutivas (no entre
// finales). La primera tarea arranca inmediatamente; cada siguiente espera
// max(0, minInterval − transcurridoDesdeÚltimoInicio). Las tareas nunca se
// solapan, dure lo que dure cada una.
//
// Una cola por dependencia externa: es el único punto de serialización para
// el presupuesto de rate limit de esa dependencia.
type RateLimitedQueue struct {
	minInterval time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	tail chan struct{} // se cierra cuando la última tarea encolada termina

	// Solo los toca la cabeza de la cadena — el canal tail serializa el acceso.
	started   bool
	lastStart time.Time
}

// NewRateLimitedQueue crea una cola con el intervalo mínimo dado.
func NewRateLimitedQueue(minInterval time.Duration) *RateLimitedQueue {
	return &RateLimitedQueue{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Enqueue encola task y bloquea hasta que termina (o el contexto se cancela
// mientras espera turno). El orden de ejecución es el orden de las llamadas a
// Enqueue. Si ctx se cancela antes de arrancar, la tarea no se ejecuta y los
// sucesores no se bloquean.
func (q *RateLimitedQueue) Enqueue(ctx context.Context, task func(ctx context.Context) error) error {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()
	defer close(done)

	// Esperar al predecesor completo: mantiene FIFO y no-solapamiento incluso
	// si nuestro ctx ya está cancelado.
	if prev != nil {
		<-prev
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if q.started {
		if wait := q.minInterval - q.now().Sub(q.lastStart); wait > 0 {
			if err := q.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	q.lastStart = q.now()
	q.started = true

	return task(ctx)
}
