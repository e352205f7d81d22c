package frameworks

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/pkg/pagination"
)

// System defines the public contract for framework catalog operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Framework], error)
	Find(ctx context.Context, id uuid.UUID) (*Framework, error)

	// Controls returns the framework's controls in canonical order.
	// Returns ErrNotFound when the framework does not exist.
	Controls(ctx context.Context, frameworkID uuid.UUID) ([]Control, error)

	// Import inserts a validated catalog and its controls in one transaction.
	Import(ctx context.Context, catalog *Catalog) (*Framework, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
