// Package analyses persists evidence analyses and exposes them over HTTP.
// Running jobs are owned by the workflow orchestrator; this package stores
// their summaries and evidence and serves their progress streams.
package analyses

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/internal/workflow"
)

// Mapping is the stored outcome of one control within a completed analysis.
type Mapping struct {
	ID          uuid.UUID       `json:"id"`
	AnalysisID  uuid.UUID       `json:"analysis_id"`
	ControlID   uuid.UUID       `json:"control_id"`
	ControlCode string          `json:"control_code"`
	Position    int             `json:"position"`
	Status      workflow.Status `json:"status"`
	Confidence  float64         `json:"confidence"`
	Reasoning   string          `json:"reasoning"`
	Failed      bool            `json:"failed"`
	Attempts    int             `json:"attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []Item          `json:"items"`
}

// Item is one citation supporting a Mapping.
type Item struct {
	ID           uuid.UUID  `json:"id"`
	MappingID    uuid.UUID  `json:"mapping_id"`
	Position     int        `json:"position"`
	DocumentID   *uuid.UUID `json:"document_id"`
	DocumentName *string    `json:"document_name"`
	PageNumber   *int       `json:"page_number"`
	Locator      *string    `json:"locator"`
	Text         string     `json:"text"`
	Relevance    float64    `json:"relevance"`
}

// StartResponse is returned when an analysis is accepted.
type StartResponse struct {
	JobID uuid.UUID `json:"job_id"`
	*workflow.Job
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
