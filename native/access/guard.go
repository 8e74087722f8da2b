package access

import "errors"

// ErrModulePaused is returned by Guard while the named module is paused.
// Mutating operations short-circuit with it; queries bypass the guard.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the circuit-breaker flags maintained by an admin.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module's circuit breaker is engaged.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
