package frameworks

import (
	"errors"
	"net/http"
)

// Domain errors for framework operations.
var (
	ErrNotFound       = errors.New("framework not found")
	ErrDuplicate      = errors.New("framework name and version already exist")
	ErrInvalidCatalog = errors.New("invalid framework catalog")
)

// MapHTTPStatus maps framework domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCatalog):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
