package prompts

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/pkg/query"
	"github.com/JaimeStill/attest/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "prompts", "p").
	Project("id", "ID").
	Project("name", "Name").
	Project("stage", "Stage").
	Project("framework_id", "FrameworkID").
	Project("instructions", "Instructions").
	Project("description", "Description").
	Project("active", "Active").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

// returning lists the columns of scanPrompt for INSERT and UPDATE statements.
const returning = `RETURNING id, name, stage, framework_id, instructions, description, active, created_at, updated_at`

var defaultSort = query.SortField{Field: "Name"}

// Filters narrows prompt queries. Nil fields are ignored. Name matches
// case-insensitively by substring, the rest exactly.
type Filters struct {
	Stage       *Stage     `json:"stage,omitempty"`
	FrameworkID *uuid.UUID `json:"framework_id,omitempty"`
	Name        *string    `json:"name,omitempty"`
	Active      *bool      `json:"active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Stage", f.Stage).
		WhereEquals("FrameworkID", f.FrameworkID).
		WhereContains("Name", f.Name).
		WhereEquals("Active", f.Active)
}

// FiltersFromQuery reads filters from URL query parameters and rejects
// malformed values.
func FiltersFromQuery(values url.Values) (Filters, error) {
	var f Filters

	if s := values.Get("stage"); s != "" {
		stage, err := ParseStage(s)
		if err != nil {
			return f, err
		}
		f.Stage = &stage
	}

	if s := values.Get("framework_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return f, fmt.Errorf("%w: framework_id: %w", ErrInvalidCommand, err)
		}
		f.FrameworkID = &id
	}

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if a := values.Get("active"); a != "" {
		v, err := strconv.ParseBool(a)
		if err != nil {
			return f, fmt.Errorf("%w: active: %w", ErrInvalidCommand, err)
		}
		f.Active = &v
	}

	return f, nil
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var p Prompt
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Stage,
		&p.FrameworkID,
		&p.Instructions,
		&p.Description,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
