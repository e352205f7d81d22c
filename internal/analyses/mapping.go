package analyses

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/internal/workflow"
	"github.com/JaimeStill/attest/pkg/query"
	"github.com/JaimeStill/attest/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "analyses", "a").
	Project("id", "ID").
	Project("organization_id", "OrganizationID").
	Project("framework_id", "FrameworkID").
	Project("document_ids", "DocumentIDs").
	Project("state", "State").
	Project("progress", "Progress").
	Project("total_controls", "TotalControls").
	Project("completed_count", "CompletedCount").
	Project("compliant_count", "CompliantCount").
	Project("partial_count", "PartialCount").
	Project("missing_count", "MissingCount").
	Project("failed_count", "FailedCount").
	Project("average_confidence", "AverageConfidence").
	Project("processing_ms", "ProcessingMillis").
	Project("error", "Error").
	Project("created_at", "CreatedAt").
	Project("started_at", "StartedAt").
	Project("completed_at", "CompletedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var mappingProjection = query.
	NewProjectionMap("public", "evidence_mappings", "m").
	Project("id", "ID").
	Project("analysis_id", "AnalysisID").
	Project("control_id", "ControlID").
	Project("control_code", "ControlCode").
	Project("position", "Position").
	Project("status", "Status").
	Project("confidence", "Confidence").
	Project("reasoning", "Reasoning").
	Project("failed", "Failed").
	Project("attempts", "Attempts").
	Project("created_at", "CreatedAt")

var mappingSort = query.SortField{Field: "Position"}

// Filters contains optional filtering criteria for analysis queries.
// Nil fields are ignored. All fields use exact matching.
type Filters struct {
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	FrameworkID    *uuid.UUID `json:"framework_id,omitempty"`
	State          *string    `json:"state,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("OrganizationID", f.OrganizationID).
		WhereEquals("FrameworkID", f.FrameworkID).
		WhereEquals("State", f.State)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unparseable ids and unknown states are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if org := values.Get("organization_id"); org != "" {
		if id, err := uuid.Parse(org); err == nil {
			f.OrganizationID = &id
		}
	}

	if fw := values.Get("framework_id"); fw != "" {
		if id, err := uuid.Parse(fw); err == nil {
			f.FrameworkID = &id
		}
	}

	if s := values.Get("state"); s != "" {
		if state, err := workflow.ParseState(s); err == nil {
			v := string(state)
			f.State = &v
		}
	}

	return f
}

func scanJob(s repository.Scanner) (workflow.Job, error) {
	var j workflow.Job
	var docsRaw []byte

	err := s.Scan(
		&j.ID,
		&j.OrganizationID,
		&j.FrameworkID,
		&docsRaw,
		&j.State,
		&j.Progress,
		&j.TotalControls,
		&j.CompletedCount,
		&j.CompliantCount,
		&j.PartialCount,
		&j.MissingCount,
		&j.FailedCount,
		&j.AverageConfidence,
		&j.ProcessingMillis,
		&j.Error,
		&j.CreatedAt,
		&j.StartedAt,
		&j.CompletedAt,
	)
	if err != nil {
		return j, err
	}

	if len(docsRaw) > 0 {
		if err := json.Unmarshal(docsRaw, &j.DocumentIDs); err != nil {
			return j, fmt.Errorf("unmarshal document_ids: %w", err)
		}
	}
	if j.DocumentIDs == nil {
		j.DocumentIDs = []uuid.UUID{}
	}

	return j, nil
}

func scanMapping(s repository.Scanner) (Mapping, error) {
	var m Mapping
	err := s.Scan(
		&m.ID,
		&m.AnalysisID,
		&m.ControlID,
		&m.ControlCode,
		&m.Position,
		&m.Status,
		&m.Confidence,
		&m.Reasoning,
		&m.Failed,
		&m.Attempts,
		&m.CreatedAt,
	)
	m.Items = []Item{}
	return m, err
}

func scanItem(s repository.Scanner) (Item, error) {
	var i Item
	err := s.Scan(
		&i.ID,
		&i.MappingID,
		&i.Position,
		&i.DocumentID,
		&i.DocumentName,
		&i.PageNumber,
		&i.Locator,
		&i.Text,
		&i.Relevance,
	)
	return i, err
}
