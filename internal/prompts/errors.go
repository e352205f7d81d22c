package prompts

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/attest/pkg/repository"
)

var (
	ErrNotFound       = errors.New("prompt not found")
	ErrDuplicate      = errors.New("prompt name taken or another override already active")
	ErrInvalidStage   = errors.New("stage must be evaluate")
	ErrInvalidCommand = errors.New("invalid prompt command")
)

// MapHTTPStatus maps prompt domain errors to HTTP status codes. An override
// naming an unknown framework is a client error.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidStage),
		errors.Is(err, ErrInvalidCommand),
		errors.Is(err, repository.ErrReference):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
