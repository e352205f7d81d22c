package documents

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/pkg/query"
	"github.com/JaimeStill/attest/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("organization_id", "OrganizationID").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("text_key", "TextKey").
	Project("status", "Status").
	Project("uploaded_at", "UploadedAt").
	Project("updated_at", "UpdatedAt")

const returning = `id, organization_id, filename, content_type, size_bytes, page_count,
	storage_key, text_key, status, uploaded_at, updated_at`

var defaultSort = query.SortField{
	Field:      "UploadedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. Filename uses case-insensitive contains matching,
// the rest match exactly.
type Filters struct {
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Status         *string    `json:"status,omitempty"`
	Filename       *string    `json:"filename,omitempty"`
	ContentType    *string    `json:"content_type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("OrganizationID", f.OrganizationID).
		WhereEquals("Status", f.Status).
		WhereContains("Filename", f.Filename).
		WhereEquals("ContentType", f.ContentType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// An unparseable organization_id is ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if org := values.Get("organization_id"); org != "" {
		if id, err := uuid.Parse(org); err == nil {
			f.OrganizationID = &id
		}
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if ct := values.Get("content_type"); ct != "" {
		f.ContentType = &ct
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.OrganizationID,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.StorageKey,
		&d.TextKey,
		&d.Status,
		&d.UploadedAt,
		&d.UpdatedAt,
	)
	return d, err
}
