package workflow

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/internal/frameworks"
)

// Aggregator folds control outcomes into running totals. It is owned by a
// single goroutine: the job's ingestion loop is the only caller.
type Aggregator struct {
	totals   Totals
	order    []uuid.UUID
	outcomes map[uuid.UUID]ControlOutcome
	expected map[uuid.UUID]struct{}
}

// NewAggregator prepares an aggregator for the given controls.
func NewAggregator(controls []frameworks.Control) *Aggregator {
	a := &Aggregator{
		totals:   Totals{Total: len(controls)},
		order:    make([]uuid.UUID, 0, len(controls)),
		outcomes: make(map[uuid.UUID]ControlOutcome, len(controls)),
		expected: make(map[uuid.UUID]struct{}, len(controls)),
	}
	for _, c := range controls {
		a.order = append(a.order, c.ID)
		a.expected[c.ID] = struct{}{}
	}
	return a
}

// Add records one outcome and returns the updated totals. Each control is
// accepted exactly once.
func (a *Aggregator) Add(o ControlOutcome) (Totals, error) {
	if _, ok := a.expected[o.ControlID]; !ok {
		return a.totals, fmt.Errorf("%w: %s", ErrUnknownControl, o.ControlID)
	}
	if _, ok := a.outcomes[o.ControlID]; ok {
		return a.totals, fmt.Errorf("%w: %s", ErrDuplicateOutcome, o.ControlCode)
	}

	a.outcomes[o.ControlID] = o
	a.totals.Completed++

	switch o.Status {
	case StatusCompliant:
		a.totals.Compliant++
	case StatusPartial:
		a.totals.Partial++
	default:
		a.totals.Missing++
	}

	if o.Failed {
		a.totals.Failed++
	} else {
		a.totals.ConfidenceSum += o.Confidence
		a.totals.ConfidenceCount++
	}

	return a.totals, nil
}

// Totals returns the current totals.
func (a *Aggregator) Totals() Totals {
	return a.totals
}

// Done reports whether every control has an outcome.
func (a *Aggregator) Done() bool {
	return a.totals.Completed == a.totals.Total
}

// Outcomes returns the recorded outcomes in canonical control order.
func (a *Aggregator) Outcomes() []ControlOutcome {
	out := make([]ControlOutcome, 0, len(a.outcomes))
	for _, id := range a.order {
		if o, ok := a.outcomes[id]; ok {
			out = append(out, o)
		}
	}
	return out
}
