package analyses

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/attest/internal/workflow"
)

// ErrNotFound is returned for an unknown analysis id.
var ErrNotFound = workflow.ErrJobNotFound

// MapHTTPStatus maps analysis and workflow errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotCancellable),
		errors.Is(err, workflow.ErrNotTerminal):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
