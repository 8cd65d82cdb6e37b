package resilience

import "fmt"

// ErrCircuitOpen is returned when the circuit breaker for a provider is open,
// rejecting the call without attempting the provider at all.
type ErrCircuitOpen struct {
	Provider string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("resilience: circuit open: %s", e.Provider)
}

// ErrPanic wraps a recovered panic value as an error.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("resilience: provider call panicked: %v", e.Value)
}
