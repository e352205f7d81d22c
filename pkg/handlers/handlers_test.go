package handlers_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/attest/pkg/handlers"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name   string
		status int
		data   any
	}{
		{name: "200 with map", status: http.StatusOK, data: map[string]string{"key": "value"}},
		{name: "202 with struct", status: http.StatusAccepted, data: struct {
			JobID string `json:"job_id"`
		}{JobID: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handlers.RespondJSON(rec, tt.status, tt.data)

			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type: got %s", ct)
			}

			var parsed map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError} {
		rec := httptest.NewRecorder()
		handlers.RespondError(rec, logger, status, errors.New("invalid input"))

		if rec.Code != status {
			t.Errorf("status: got %d, want %d", rec.Code, status)
		}

		var parsed handlers.ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if parsed.Error != "invalid input" {
			t.Errorf("error: got %q, want %q", parsed.Error, "invalid input")
		}
	}
}
