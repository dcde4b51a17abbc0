package session

import "errors"

var (
	ErrNotFound               = errors.New("session not found")
	ErrForbidden              = errors.New("only the session creator can do this")
	ErrSessionNotActive       = errors.New("session is not active")
	ErrInvalidStateTransition = errors.New("invalid session state transition")
	// ErrCodeGenerationExhausted means the code space is close to saturated.
	ErrCodeGenerationExhausted = errors.New("session code generation exhausted")
	ErrInvalidModuleType       = errors.New("invalid module type")
	ErrExternalService         = errors.New("external service failure")
)
