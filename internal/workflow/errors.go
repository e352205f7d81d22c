package workflow

import "errors"

var (
	ErrJobNotFound       = errors.New("analysis not found")
	ErrInvalidCommand    = errors.New("invalid analysis request")
	ErrNotCancellable    = errors.New("analysis can no longer be cancelled")
	ErrNotTerminal       = errors.New("analysis is still running")
	ErrInvalidTransition = errors.New("invalid state transition")

	ErrNoControls  = errors.New("framework has no controls")
	ErrNoDocuments = errors.New("no documents resolve for the analysis")

	ErrCancelled  = errors.New("analysis cancelled")
	ErrJobTimeout = errors.New("analysis timed out")
	ErrShutdown   = errors.New("analysis interrupted by shutdown")

	ErrMalformedOutcome = errors.New("malformed evaluation")
	ErrDuplicateOutcome = errors.New("control already has an outcome")
	ErrUnknownControl   = errors.New("outcome for a control outside the job")
)
