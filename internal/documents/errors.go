package documents

import (
	"errors"
	"net/http"
)

// Domain errors for document operations.
var (
	ErrNotFound            = errors.New("document not found")
	ErrDuplicate           = errors.New("document already exists")
	ErrFileTooLarge        = errors.New("file exceeds maximum upload size")
	ErrInvalidFile         = errors.New("invalid file")
	ErrEmptyText           = errors.New("prepared text is empty")
	ErrNotPrepared         = errors.New("document has no prepared text")
	ErrNoPreparedDocuments = errors.New("no prepared documents resolve for the organization")
)

// MapHTTPStatus maps document domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrNotPrepared):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidFile), errors.Is(err, ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoPreparedDocuments):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
