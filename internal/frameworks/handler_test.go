package frameworks_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/internal/frameworks"
	"github.com/JaimeStill/attest/pkg/pagination"
	"github.com/JaimeStill/attest/pkg/routes"
)

type mockSystem struct {
	listFn     func(ctx context.Context, page pagination.PageRequest, filters frameworks.Filters) (*pagination.PageResult[frameworks.Framework], error)
	findFn     func(ctx context.Context, id uuid.UUID) (*frameworks.Framework, error)
	controlsFn func(ctx context.Context, id uuid.UUID) ([]frameworks.Control, error)
	importFn   func(ctx context.Context, c *frameworks.Catalog) (*frameworks.Framework, error)
	deleteFn   func(ctx context.Context, id uuid.UUID) error
}

func (m *mockSystem) Handler() *frameworks.Handler { return newTestHandler(m) }

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, f frameworks.Filters) (*pagination.PageResult[frameworks.Framework], error) {
	return m.listFn(ctx, page, f)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*frameworks.Framework, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Controls(ctx context.Context, id uuid.UUID) ([]frameworks.Control, error) {
	return m.controlsFn(ctx, id)
}

func (m *mockSystem) Import(ctx context.Context, c *frameworks.Catalog) (*frameworks.Framework, error) {
	return m.importFn(ctx, c)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func newTestHandler(sys frameworks.System) *frameworks.Handler {
	return frameworks.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(sys frameworks.System) *http.ServeMux {
	mux := http.NewServeMux()
	routes.Register(mux, newTestHandler(sys).Routes())
	return mux
}

func TestHandlerImport(t *testing.T) {
	var captured *frameworks.Catalog
	sys := &mockSystem{
		importFn: func(_ context.Context, c *frameworks.Catalog) (*frameworks.Framework, error) {
			captured = c
			if c.Name == "Existing" {
				return nil, frameworks.ErrDuplicate
			}
			return &frameworks.Framework{ID: uuid.New(), Name: c.Name, ControlCount: len(c.Controls)}, nil
		},
	}
	mux := setupMux(sys)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"yaml", isoCatalog, http.StatusCreated},
		{"duplicate", "name: Existing\ncontrols:\n  - code: A\n    title: T\n", http.StatusConflict},
		{"invalid", "name: NoControls\n", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/frameworks", strings.NewReader(tt.body)))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	if captured == nil || captured.Name != "Existing" {
		t.Errorf("last imported catalog = %+v", captured)
	}
}

func TestHandlerImportTooLarge(t *testing.T) {
	sys := &mockSystem{}
	body := strings.Repeat("#", frameworks.MaxCatalogSize+1)

	rec := httptest.NewRecorder()
	setupMux(sys).ServeHTTP(rec, httptest.NewRequest("POST", "/frameworks", strings.NewReader(body)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestHandlerControls(t *testing.T) {
	fid := uuid.New()
	sys := &mockSystem{
		controlsFn: func(_ context.Context, id uuid.UUID) ([]frameworks.Control, error) {
			if id != fid {
				return nil, frameworks.ErrNotFound
			}
			return []frameworks.Control{
				{ID: uuid.New(), FrameworkID: fid, Code: "A.5.1", Position: 1},
				{ID: uuid.New(), FrameworkID: fid, Code: "A.5.2", Position: 2},
			}, nil
		},
	}
	mux := setupMux(sys)

	t.Run("ordered controls", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/frameworks/"+fid.String()+"/controls", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var got []frameworks.Control
		json.NewDecoder(rec.Body).Decode(&got)
		if len(got) != 2 || got[0].Code != "A.5.1" {
			t.Errorf("controls = %+v", got)
		}
	})

	t.Run("unknown framework", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/frameworks/"+uuid.NewString()+"/controls", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestHandlerListAndFind(t *testing.T) {
	fw := frameworks.Framework{ID: uuid.New(), Name: "SOC 2", Version: "2017"}
	var captured frameworks.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest, f frameworks.Filters) (*pagination.PageResult[frameworks.Framework], error) {
			captured = f
			result := pagination.NewPageResult([]frameworks.Framework{fw}, 1, page.Page, page.PageSize)
			return &result, nil
		},
		findFn: func(_ context.Context, id uuid.UUID) (*frameworks.Framework, error) {
			if id != fw.ID {
				return nil, frameworks.ErrNotFound
			}
			return &fw, nil
		},
		deleteFn: func(_ context.Context, id uuid.UUID) error { return nil },
	}
	mux := setupMux(sys)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"list", "GET", "/frameworks?version=2017", "", http.StatusOK},
		{"search", "POST", "/frameworks/search", `{"name":"SOC"}`, http.StatusOK},
		{"find", "GET", "/frameworks/" + fw.ID.String(), "", http.StatusOK},
		{"find missing", "GET", "/frameworks/" + uuid.NewString(), "", http.StatusNotFound},
		{"find invalid", "GET", "/frameworks/abc", "", http.StatusBadRequest},
		{"delete", "DELETE", "/frameworks/" + fw.ID.String(), "", http.StatusNoContent},
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

	if captured.Name == nil || *captured.Name != "SOC" {
		t.Errorf("search filters = %+v", captured)
	}
}
