package analyses

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/internal/workflow"
	"github.com/JaimeStill/attest/pkg/pagination"
)

// System defines the public contract for analysis persistence. It is the
// workflow.Store of the orchestrator and adds the read side of the API.
type System interface {
	workflow.Store

	Handler(engine Engine) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[workflow.Job], error)

	// Evidence returns the stored outcomes of an analysis in control order,
	// each with its citations. A job without outcomes returns an empty slice.
	Evidence(ctx context.Context, id uuid.UUID) ([]Mapping, error)
}
