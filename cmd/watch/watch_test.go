package main

import (
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/JaimeStill/attest/internal/workflow"
)

func TestStreamURL(t *testing.T) {
	id := uuid.NewString()
	tests := []struct {
		server string
		want   string
		err    bool
	}{
		{"http://localhost:8080/api", "ws://localhost:8080/api/analyses/" + id + "/stream", false},
		{"https://attest.example.com/api/", "wss://attest.example.com/api/analyses/" + id + "/stream", false},
		{"ws://localhost:8080", "ws://localhost:8080/analyses/" + id + "/stream", false},
		{"ftp://localhost", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, err := streamURL(tt.server, id)
			if tt.err {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("streamURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFormatEvent(t *testing.T) {
	color.NoColor = true

	progress := formatEvent(workflow.ProgressEvent{
		Stage:    workflow.StateEvaluating,
		Progress: 40,
		Step:     "control evaluated",
		Outcome:  &workflow.OutcomeSummary{ControlCode: "CC6.1", Status: workflow.StatusPartial, Confidence: 62},
	})
	if !strings.Contains(progress, " 40% control evaluated") || !strings.Contains(progress, "CC6.1 partial (62)") {
		t.Errorf("progress line = %q", progress)
	}

	failed := formatEvent(workflow.ProgressEvent{
		Stage:   workflow.StateEvaluating,
		Outcome: &workflow.OutcomeSummary{ControlCode: "CC7.2", Status: workflow.StatusMissing, Failed: true},
	})
	if !strings.Contains(failed, "CC7.2 failed (0)") {
		t.Errorf("failed outcome line = %q", failed)
	}

	done := formatEvent(workflow.ProgressEvent{
		Stage:    workflow.StateCompleted,
		Progress: 100,
		Terminal: true,
		Replay:   true,
		Totals:   workflow.Totals{Total: 3, Completed: 3, Compliant: 1, Partial: 1, Missing: 1},
	})
	if !strings.Contains(done, "(replay)") || !strings.Contains(done, "3/3 evaluated: 1 compliant, 1 partial, 1 missing, 0 failed") {
		t.Errorf("terminal line = %q", done)
	}

	aborted := formatEvent(workflow.ProgressEvent{Stage: workflow.StateFailed, Terminal: true, Error: "analysis cancelled"})
	if !strings.Contains(aborted, "failed: analysis cancelled") {
		t.Errorf("failed terminal line = %q", aborted)
	}
}
