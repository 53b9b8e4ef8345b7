package service

import "errors"

// Business-rule errors. Handlers map these to 4xx responses; everything
// else from this package is a 5xx.
var (
	// ErrValidation marks a definition that fails creation/update rules.
	ErrValidation = errors.New("validation failed")

	// ErrExperimentNotRunning is returned when assignment is requested
	// against an experiment whose status is not RUNNING. The call is not
	// retried; the caller falls back to its own default behavior.
	ErrExperimentNotRunning = errors.New("experiment is not running")

	// ErrExperimentConcluded guards against concluding twice.
	ErrExperimentConcluded = errors.New("experiment already concluded")

	// ErrUnknownVariant is returned when a conclusion names a variant the
	// experiment does not have.
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrInvalidTransition is returned for a lifecycle status change the
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)
