package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/pkg/pagination"
)

// System defines the public contract for prompt domain operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Prompt], error)
	Find(ctx context.Context, id uuid.UUID) (*Prompt, error)

	// Resolve returns the effective instructions of stage for a framework.
	// uuid.Nil resolves global overrides and defaults only.
	Resolve(ctx context.Context, stage Stage, frameworkID uuid.UUID) (*Resolved, error)
	// Compose joins the resolved instructions and the stage's response
	// specification into a system prompt.
	Compose(ctx context.Context, stage Stage, frameworkID uuid.UUID) (string, error)

	Create(ctx context.Context, cmd Command) (*Prompt, error)
	Update(ctx context.Context, id uuid.UUID, cmd Command) (*Prompt, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Activate makes the prompt the active override of its stage and scope,
	// deactivating the previous one in the same transaction.
	Activate(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error)
}
