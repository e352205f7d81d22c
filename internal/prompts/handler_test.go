package prompts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/internal/prompts"
	"github.com/JaimeStill/attest/pkg/pagination"
	"github.com/JaimeStill/attest/pkg/repository"
	"github.com/JaimeStill/attest/pkg/routes"
)

type mockSystem struct {
	listFn         func(ctx context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Prompt], error)
	findFn         func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
	resolveFn      func(ctx context.Context, stage prompts.Stage, frameworkID uuid.UUID) (*prompts.Resolved, error)
	createFn       func(ctx context.Context, cmd prompts.Command) (*prompts.Prompt, error)
	updateFn       func(ctx context.Context, id uuid.UUID, cmd prompts.Command) (*prompts.Prompt, error)
	deleteFn       func(ctx context.Context, id uuid.UUID) error
	activateFn     func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
	deactivateFn   func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
}

func (m *mockSystem) Handler() *prompts.Handler { return newTestHandler(m) }

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Resolve(ctx context.Context, stage prompts.Stage, frameworkID uuid.UUID) (*prompts.Resolved, error) {
	return m.resolveFn(ctx, stage, frameworkID)
}

func (m *mockSystem) Compose(ctx context.Context, stage prompts.Stage, frameworkID uuid.UUID) (string, error) {
	res, err := m.resolveFn(ctx, stage, frameworkID)
	if err != nil {
		return "", err
	}
	spec, _ := prompts.Spec(stage)
	return prompts.Compose(res.Instructions, spec), nil
}

func (m *mockSystem) Create(ctx context.Context, cmd prompts.Command) (*prompts.Prompt, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Update(ctx context.Context, id uuid.UUID, cmd prompts.Command) (*prompts.Prompt, error) {
	return m.updateFn(ctx, id, cmd)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSystem) Activate(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.activateFn(ctx, id)
}

func (m *mockSystem) Deactivate(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.deactivateFn(ctx, id)
}

func newTestHandler(sys prompts.System) *prompts.Handler {
	return prompts.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *prompts.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	routes.Register(mux, h.Routes())
	return mux
}

var (
	promptID    = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	frameworkID = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
)

func samplePrompt() prompts.Prompt {
	return prompts.Prompt{
		ID:           promptID,
		Name:         "strict-evaluate",
		Stage:        prompts.StageEvaluate,
		Instructions: "Only accept implemented controls as compliant.",
		Description:  ptr("Strict evaluation"),
	}
}

func TestHandlerList(t *testing.T) {
	var captured prompts.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest, f prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
			captured = f
			result := pagination.NewPageResult([]prompts.Prompt{samplePrompt()}, 1, page.Page, page.PageSize)
			return &result, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/prompts?stage=evaluate&name=strict&framework_id="+frameworkID.String(), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result pagination.PageResult[prompts.Prompt]
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Total != 1 || result.Data[0].Name != "strict-evaluate" {
		t.Errorf("unexpected result %+v", result)
	}
	if captured.Stage == nil || *captured.Stage != prompts.StageEvaluate {
		t.Errorf("stage filter = %v, want evaluate", captured.Stage)
	}
	if captured.Name == nil || *captured.Name != "strict" {
		t.Errorf("name filter = %v, want strict", captured.Name)
	}
	if captured.FrameworkID == nil || *captured.FrameworkID != frameworkID {
		t.Errorf("framework filter = %v, want %s", captured.FrameworkID, frameworkID)
	}

	for _, q := range []string{"stage=classify", "framework_id=nope", "active=maybe"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/prompts?"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestHandlerFind(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"found", "/prompts/" + promptID.String(), nil, http.StatusOK},
		{"not found", "/prompts/" + promptID.String(), prompts.ErrNotFound, http.StatusNotFound},
		{"invalid id", "/prompts/not-a-uuid", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				findFn: func(_ context.Context, id uuid.UUID) (*prompts.Prompt, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					p := samplePrompt()
					return &p, nil
				},
			}

			rec := httptest.NewRecorder()
			setupMux(newTestHandler(sys)).ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHandlerInstructions(t *testing.T) {
	var captured uuid.UUID
	sys := &mockSystem{
		resolveFn: func(_ context.Context, stage prompts.Stage, fid uuid.UUID) (*prompts.Resolved, error) {
			captured = fid
			if fid == uuid.Nil {
				return &prompts.Resolved{Stage: stage, Source: prompts.SourceDefault, Instructions: "default"}, nil
			}
			return &prompts.Resolved{Stage: stage, Source: prompts.SourceFramework, PromptID: ptr(promptID), Instructions: "override"}, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	tests := []struct {
		name   string
		path   string
		status int
		source prompts.Source
		fid    uuid.UUID
	}{
		{"default", "/prompts/evaluate/instructions", http.StatusOK, prompts.SourceDefault, uuid.Nil},
		{"framework", "/prompts/evaluate/instructions?framework_id=" + frameworkID.String(), http.StatusOK, prompts.SourceFramework, frameworkID},
		{"invalid framework", "/prompts/evaluate/instructions?framework_id=bad", http.StatusBadRequest, "", uuid.Nil},
		{"unknown stage", "/prompts/classify/instructions", http.StatusBadRequest, "", uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captured = uuid.Nil
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}

			var got prompts.Resolved
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Source != tt.source {
				t.Errorf("source = %q, want %q", got.Source, tt.source)
			}
			if captured != tt.fid {
				t.Errorf("framework id = %s, want %s", captured, tt.fid)
			}
		})
	}
}

func TestHandlerSpec(t *testing.T) {
	mux := setupMux(newTestHandler(&mockSystem{}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/prompts/evaluate/spec", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got prompts.StageContent
	json.NewDecoder(rec.Body).Decode(&got)
	if !strings.Contains(got.Content, `"status"`) {
		t.Errorf("spec content missing status field: %q", got.Content)
	}
}

func TestHandlerCreate(t *testing.T) {
	var captured prompts.Command
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd prompts.Command) (*prompts.Prompt, error) {
			captured = cmd
			switch cmd.Name {
			case "taken":
				return nil, prompts.ErrDuplicate
			case "orphan":
				return nil, repository.ErrReference
			}
			p := samplePrompt()
			return &p, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"created", `{"name":" strict-evaluate ","stage":"evaluate","instructions":"x","framework_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7"}`, http.StatusCreated},
		{"duplicate", `{"name":"taken","stage":"evaluate","instructions":"x"}`, http.StatusConflict},
		{"invalid stage", `{"name":"x","stage":"classify","instructions":"x"}`, http.StatusBadRequest},
		{"missing instructions", `{"name":"x","stage":"evaluate"}`, http.StatusBadRequest},
		{"unknown framework", `{"name":"orphan","stage":"evaluate","instructions":"x","framework_id":"` + uuid.NewString() + `"}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/prompts", bytes.NewBufferString(tt.body)))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	if captured.Stage != prompts.StageEvaluate {
		t.Errorf("captured stage = %q", captured.Stage)
	}
	if captured.Name != "orphan" {
		t.Errorf("captured name = %q, want last accepted command", captured.Name)
	}
}

func TestHandlerSearch(t *testing.T) {
	var captured pagination.PageRequest
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest, _ prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
			captured = page
			result := pagination.NewPageResult[prompts.Prompt](nil, 0, page.Page, page.PageSize)
			return &result, nil
		},
	}

	body := `{"page":2,"page_size":500,"sort":"-name"}`
	rec := httptest.NewRecorder()
	setupMux(newTestHandler(sys)).ServeHTTP(rec, httptest.NewRequest("POST", "/prompts/search", bytes.NewBufferString(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.Page != 2 || captured.PageSize != 100 {
		t.Errorf("page = %d size = %d, want 2/100", captured.Page, captured.PageSize)
	}
	if len(captured.Sort) != 1 || !captured.Sort[0].Descending {
		t.Errorf("sort = %+v", captured.Sort)
	}
}

func TestHandlerLifecycleOperations(t *testing.T) {
	errBoom := errors.New("boom")
	sys := &mockSystem{
		updateFn: func(_ context.Context, _ uuid.UUID, cmd prompts.Command) (*prompts.Prompt, error) {
			p := samplePrompt()
			p.Name = cmd.Name
			return &p, nil
		},
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			if id != promptID {
				return prompts.ErrNotFound
			}
			return nil
		},
		activateFn: func(_ context.Context, _ uuid.UUID) (*prompts.Prompt, error) {
			p := samplePrompt()
			p.Active = true
			return &p, nil
		},
		deactivateFn: func(_ context.Context, _ uuid.UUID) (*prompts.Prompt, error) {
			return nil, errBoom
		},
	}
	mux := setupMux(newTestHandler(sys))
	base := "/prompts/" + promptID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"update", "PUT", base, `{"name":"renamed","stage":"evaluate","instructions":"y"}`, http.StatusOK},
		{"update invalid", "PUT", base, `{"name":"  ","stage":"evaluate","instructions":"y"}`, http.StatusBadRequest},
		{"delete", "DELETE", base, "", http.StatusNoContent},
		{"delete missing", "DELETE", "/prompts/" + uuid.NewString(), "", http.StatusNotFound},
		{"activate", "POST", base + "/activate", "", http.StatusOK},
		{"deactivate failure", "POST", base + "/deactivate", "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHandlerRoutesDocumented(t *testing.T) {
	group := newTestHandler(&mockSystem{}).Routes()
	for _, r := range group.Routes {
		if r.OpenAPI == nil {
			t.Errorf("%s %s has no OpenAPI operation", r.Method, r.Pattern)
		}
	}
}
