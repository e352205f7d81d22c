// Package documents is the boundary to the document pipeline. It stores
// uploaded originals in blob storage, accepts the prepared text the external
// conversion pipeline produces, and assembles that text into the context an
// analysis evaluates against.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks whether a document's prepared text is available.
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusPrepared Status = "prepared"
)

// Document is an uploaded file owned by an organization.
type Document struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Filename       string    `json:"filename"`
	ContentType    string    `json:"content_type"`
	SizeBytes      int64     `json:"size_bytes"`
	PageCount      *int      `json:"page_count"`
	StorageKey     string    `json:"storage_key"`
	TextKey        *string   `json:"text_key"`
	Status         Status    `json:"status"`
	UploadedAt     time.Time `json:"uploaded_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to upload and register a document.
// Text content types are registered as prepared, using the original blob as
// their prepared text.
type CreateCommand struct {
	Data           []byte
	Filename       string
	ContentType    string
	OrganizationID uuid.UUID
	PageCount      *int
}
