package api

import (
	"github.com/JaimeStill/attest/internal/analyses"
	"github.com/JaimeStill/attest/internal/documents"
	"github.com/JaimeStill/attest/internal/frameworks"
	"github.com/JaimeStill/attest/internal/prompts"
	"github.com/JaimeStill/attest/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Frameworks frameworks.System
	Documents  documents.System
	Prompts    prompts.System
	Analyses   analyses.System
	Engine     *workflow.Orchestrator
}

// NewDomain creates all domain systems from the API runtime and wires the
// analysis engine to them.
func NewDomain(runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	frameworksSystem := frameworks.New(db, runtime.Logger, runtime.Pagination)
	docsSystem := documents.New(db, runtime.Storage, runtime.Logger, runtime.Pagination, runtime.MaxContextBytes)
	promptsSystem := prompts.New(db, runtime.Logger, runtime.Pagination)
	analysesSystem := analyses.New(db, runtime.Logger, runtime.Pagination)

	engine := workflow.New(
		workflow.Runtime{
			Frameworks: frameworksSystem,
			Documents:  docsSystem,
			Prompts:    promptsSystem,
			Client:     runtime.Agent,
			Store:      analysesSystem,
			Logger:     runtime.Logger,
		},
		runtime.Engine,
		runtime.Lifecycle,
	)

	return &Domain{
		Frameworks: frameworksSystem,
		Documents:  docsSystem,
		Prompts:    promptsSystem,
		Analyses:   analysesSystem,
		Engine:     engine,
	}
}
