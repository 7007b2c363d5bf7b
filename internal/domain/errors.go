package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals a request document that cannot be decoded.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnknownProvider signals a provider name missing from the registry.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrUnsupportedExpression signals a search expression the provider cannot translate.
	ErrUnsupportedExpression = errors.New("unsupported search expression")
	// ErrStreaming signals a failure while writing results to the host.
	ErrStreaming = errors.New("error while streaming results")
	// ErrInvalidConfig signals missing or malformed provider configuration.
	ErrInvalidConfig = errors.New("invalid provider configuration")
)

// Phase names a provider lifecycle step.
type Phase string

// Lifecycle phases.
const (
	PhaseInit  Phase = "init"
	PhaseRun   Phase = "run"
	PhaseClose Phase = "close"
)

// PhaseError wraps a provider failure with the lifecycle phase it happened in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Phase, e.Err.Error())
}

func (e *PhaseError) Unwrap() error { return e.Err }

// NewPhaseError wraps err with the given phase.
func NewPhaseError(phase Phase, err error) error {
	return &PhaseError{Phase: phase, Err: err}
}
