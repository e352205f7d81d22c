package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/internal/documents"
	"github.com/JaimeStill/attest/internal/frameworks"
	"github.com/JaimeStill/attest/internal/prompts"
)

// Catalog supplies a framework's controls in canonical order.
type Catalog interface {
	Controls(ctx context.Context, frameworkID uuid.UUID) ([]frameworks.Control, error)
}

// Documents supplies the prepared document context of an analysis.
type Documents interface {
	GetPreparedContext(ctx context.Context, organizationID uuid.UUID, documentIDs []uuid.UUID) (*documents.PreparedContext, error)
}

// Prompts supplies the evaluation system prompt of a framework.
type Prompts interface {
	Compose(ctx context.Context, stage prompts.Stage, frameworkID uuid.UUID) (string, error)
}

// Store persists analyses. Complete writes the summary and every outcome in
// one transaction. Find and Delete return ErrJobNotFound for unknown ids and
// Delete returns ErrNotTerminal for a job that is still running.
type Store interface {
	Create(ctx context.Context, job Job) error
	UpdateState(ctx context.Context, job Job) error
	Complete(ctx context.Context, job Job, outcomes []ControlOutcome) error
	Fail(ctx context.Context, job Job) error
	Find(ctx context.Context, id uuid.UUID) (*Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Runtime bundles the collaborators an analysis needs.
// It is constructed by higher-level composition code from Infrastructure and Domain systems.
type Runtime struct {
	Frameworks Catalog
	Documents  Documents
	Prompts    Prompts
	Client     Client
	Store      Store
	Logger     *slog.Logger
}

// Config tunes the orchestrator.
type Config struct {
	Concurrency      int
	Evaluator        EvaluatorConfig
	JobTimeout       time.Duration
	PersistTimeout   time.Duration
	RetainWindow     time.Duration
	SubscriberBuffer int
}
