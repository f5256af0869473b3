// Package resilience contiene las primitivas genéricas de tolerancia a
// fallos que envuelven llamadas a servicios externos poco fiables: circuit
// breaker, retry con backoff exponencial y cola rate-limited.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// CircuitState es el estado del breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // las llamadas pasan
	CircuitOpen     CircuitState = "OPEN"      // fail-fast sin intentar
	CircuitHalfOpen CircuitState = "HALF_OPEN" // se permite una llamada de prueba
)

// ErrCircuitOpen se devuelve cuando el breaker está abierto y la ventana de
// prueba aún no llegó.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// CircuitSnapshot es una foto del estado interno, para ops y tests.
type CircuitSnapshot struct {
	State               CircuitState
	ConsecutiveFailures int
	OpenedAt            time.Time // cero si nunca abrió
}

// CircuitBreaker protege una dependencia externa: tras failureThreshold
// fallos consecutivos abre y rechaza llamadas hasta que pase resetTimeout,
// momento en el que permite una llamada de prueba (HALF_OPEN). Un solo fallo
// durante la prueba reabre inmediatamente, sin esperar a acumular el umbral
// otra vez — no queremos martillear una dependencia que sigue caída.
//
// El estado es local a la instancia: todas las llamadas a la misma
// dependencia deben compartir el mismo breaker para que tenga sentido.
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
}

// NewCircuitBreaker crea un breaker en CLOSED.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
		state:            CircuitClosed,
	}
}

// Do ejecuta task a través del breaker. Si está OPEN y la ventana de reset no
// llegó, devuelve ErrCircuitOpen sin llamar a task. El error de task se
// propaga tal cual.
func (b *CircuitBreaker) Do(task func() error) error {
	b.mu.Lock()
	b.maybeHalfOpen()
	if b.state == CircuitOpen {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	err := task()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		// Éxito cierra incondicionalmente, incluso desde HALF_OPEN
		b.state = CircuitClosed
		b.consecutiveFailures = 0
		b.openedAt = time.Time{}
		return nil
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.failureThreshold || b.state == CircuitHalfOpen {
		b.state = CircuitOpen
		b.openedAt = b.now()
	}
	return err
}

// Snapshot devuelve el estado actual sin mutarlo.
func (b *CircuitBreaker) Snapshot() CircuitSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return CircuitSnapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		OpenedAt:            b.openedAt,
	}
}

// maybeHalfOpen transiciona OPEN → HALF_OPEN si ya pasó el reset timeout.
// Caller debe tener el lock.
func (b *CircuitBreaker) maybeHalfOpen() {
	if b.state != CircuitOpen || b.openedAt.IsZero() {
		return
	}
	if b.now().Sub(b.openedAt) >= b.resetTimeout {
		b.state = CircuitHalfOpen
	}
}
