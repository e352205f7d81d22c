// Package workflow runs evidence analyses. An analysis evaluates every
// control of a framework against an organization's prepared documents,
// aggregates the per-control outcomes into a durable summary and streams
// progress to any number of observers while it runs.
package workflow

import (
	"time"

	"github.com/google/uuid"
)

// State is a job's lifecycle state.
type State string

const (
	StateQueued     State = "queued"
	StatePreparing  State = "preparing"
	StateEvaluating State = "evaluating"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Cancellable reports whether a cancel request can still stop the job.
func (s State) Cancellable() bool {
	return s == StateQueued || s == StatePreparing || s == StateEvaluating
}

// Status is a control's compliance verdict.
type Status string

const (
	StatusCompliant Status = "compliant"
	StatusPartial   Status = "partial"
	StatusMissing   Status = "missing"
)

// Citation is one piece of evidence supporting an outcome, attributed to a
// source document where it could be resolved.
type Citation struct {
	DocumentID   *uuid.UUID `json:"document_id,omitempty"`
	DocumentName string     `json:"document_name,omitempty"`
	PageNumber   *int       `json:"page_number,omitempty"`
	Locator      string     `json:"locator,omitempty"`
	Text         string     `json:"text"`
	Relevance    float64    `json:"relevance"`
}

// ControlOutcome is the result of evaluating one control. A failed outcome
// is a placeholder standing in for an evaluation that could not be obtained.
type ControlOutcome struct {
	ControlID   uuid.UUID  `json:"control_id"`
	ControlCode string     `json:"control_code"`
	Position    int        `json:"position"`
	Status      Status     `json:"status"`
	Confidence  float64    `json:"confidence"`
	Reasoning   string     `json:"reasoning"`
	Citations   []Citation `json:"citations"`
	Failed      bool       `json:"failed"`
	Attempts    int        `json:"attempts"`
}

// OutcomeSummary is the slice of a ControlOutcome carried on progress events.
type OutcomeSummary struct {
	ControlID   uuid.UUID `json:"control_id"`
	ControlCode string    `json:"control_code"`
	Status      Status    `json:"status"`
	Confidence  float64   `json:"confidence"`
	Failed      bool      `json:"failed"`
}

// Summary returns the event form of o.
func (o ControlOutcome) Summary() *OutcomeSummary {
	return &OutcomeSummary{
		ControlID:   o.ControlID,
		ControlCode: o.ControlCode,
		Status:      o.Status,
		Confidence:  o.Confidence,
		Failed:      o.Failed,
	}
}

// Totals are a job's running counters.
type Totals struct {
	Total           int     `json:"total_controls"`
	Completed       int     `json:"completed_count"`
	Compliant       int     `json:"compliant_count"`
	Partial         int     `json:"partial_count"`
	Missing         int     `json:"missing_count"`
	Failed          int     `json:"failed_count"`
	ConfidenceSum   float64 `json:"-"`
	ConfidenceCount int     `json:"-"`
}

// Progress is floor(completed*100/total) held below 100. Only the completed
// terminal event reports 100.
func (t Totals) Progress() int {
	if t.Total <= 0 {
		return 0
	}
	return min(max(t.Completed*100/t.Total, 0), 99)
}

// AverageConfidence is the mean confidence of non-failed outcomes, or 0 when
// there are none. It is rounded to two decimals.
func (t Totals) AverageConfidence() float64 {
	if t.ConfidenceCount == 0 {
		return 0
	}
	avg := t.ConfidenceSum / float64(t.ConfidenceCount)
	return float64(int64(avg*100+0.5)) / 100
}

// ProgressEvent is a point-in-time snapshot delivered to observers.
type ProgressEvent struct {
	JobID     uuid.UUID       `json:"job_id"`
	Sequence  int64           `json:"sequence"`
	Stage     State           `json:"stage"`
	Progress  int             `json:"progress"`
	Step      string          `json:"step"`
	Totals    Totals          `json:"totals"`
	Outcome   *OutcomeSummary `json:"outcome,omitempty"`
	Terminal  bool            `json:"terminal"`
	Replay    bool            `json:"replay"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Job is the caller-visible state of one analysis.
type Job struct {
	ID                uuid.UUID   `json:"id"`
	OrganizationID    uuid.UUID   `json:"organization_id"`
	FrameworkID       uuid.UUID   `json:"framework_id"`
	DocumentIDs       []uuid.UUID `json:"document_ids"`
	State             State       `json:"state"`
	Progress          int         `json:"progress"`
	TotalControls     int         `json:"total_controls"`
	CompletedCount    int         `json:"completed_count"`
	CompliantCount    int         `json:"compliant_count"`
	PartialCount      int         `json:"partial_count"`
	MissingCount      int         `json:"missing_count"`
	FailedCount       int         `json:"failed_count"`
	AverageConfidence float64     `json:"average_confidence"`
	ProcessingMillis  *int64      `json:"processing_ms"`
	Error             *string     `json:"error"`
	CreatedAt         time.Time   `json:"created_at"`
	StartedAt         *time.Time  `json:"started_at"`
	CompletedAt       *time.Time  `json:"completed_at"`
}

// Totals returns the job counters as Totals. The confidence accumulator is
// not part of a Job and is left empty.
func (j Job) Totals() Totals {
	return Totals{
		Total:     j.TotalControls,
		Completed: j.CompletedCount,
		Compliant: j.CompliantCount,
		Partial:   j.PartialCount,
		Missing:   j.MissingCount,
		Failed:    j.FailedCount,
	}
}

func (j *Job) applyTotals(t Totals) {
	j.TotalControls = t.Total
	j.CompletedCount = t.Completed
	j.CompliantCount = t.Compliant
	j.PartialCount = t.Partial
	j.MissingCount = t.Missing
	j.FailedCount = t.Failed
	j.AverageConfidence = t.AverageConfidence()
}

func (j Job) clone() Job {
	c := j
	c.DocumentIDs = append([]uuid.UUID(nil), j.DocumentIDs...)
	return c
}

// StartCommand carries the arguments of a new analysis.
type StartCommand struct {
	OrganizationID uuid.UUID   `json:"organization_id"`
	FrameworkID    uuid.UUID   `json:"framework_id"`
	DocumentIDs    []uuid.UUID `json:"document_ids"`
}
