package documents

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/pkg/pagination"
)

// System defines the public contract for document domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// SetText stores prepared text for a document and marks it prepared.
	SetText(ctx context.Context, id uuid.UUID, text []byte) (*Document, error)

	// Open streams the uploaded file of a document. The caller must close
	// the reader.
	Open(ctx context.Context, id uuid.UUID) (*Document, io.ReadCloser, error)

	// Text returns a document's prepared text.
	// Returns ErrNotPrepared when the document has none yet.
	Text(ctx context.Context, id uuid.UUID) (string, error)

	// GetPreparedContext renders the prepared documents of organizationID
	// listed in documentIDs, in request order, into one context.
	// Ids that are unknown, unprepared or owned by another organization are
	// skipped. Returns ErrNoPreparedDocuments when none resolve.
	GetPreparedContext(
		ctx context.Context,
		organizationID uuid.UUID,
		documentIDs []uuid.UUID,
	) (*PreparedContext, error)
}
