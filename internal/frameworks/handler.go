package frameworks

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/pkg/handlers"
	"github.com/JaimeStill/attest/pkg/openapi"
	"github.com/JaimeStill/attest/pkg/pagination"
	"github.com/JaimeStill/attest/pkg/routes"
)

// MaxCatalogSize bounds an imported catalog body.
const MaxCatalogSize = 4 << 20

// Handler provides HTTP endpoints for framework catalogs.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "frameworks"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for framework endpoints.
func (h *Handler) Routes() routes.Group {
	id := openapi.PathParam("id", "Framework ID")

	return routes.Group{
		Prefix:  "/frameworks",
		Tags:    []string{"Frameworks"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: &openapi.Operation{
				Summary: "List frameworks",
				Parameters: []*openapi.Parameter{
					openapi.QueryParam("name", "string", "Name contains", false),
					openapi.QueryParam("version", "string", "Exact version", false),
				},
				Responses: map[int]*openapi.Response{200: openapi.ResponseJSON("Page of frameworks", "FrameworkPage")},
			}},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: &openapi.Operation{
				Summary:     "Search frameworks",
				RequestBody: openapi.RequestBodyJSON("PageRequest", false),
				Responses:   map[int]*openapi.Response{200: openapi.ResponseJSON("Page of frameworks", "FrameworkPage")},
			}},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: &openapi.Operation{
				Summary:    "Find a framework",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Framework", "Framework"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "GET", Pattern: "/{id}/controls", Handler: h.Controls, OpenAPI: &openapi.Operation{
				Summary:    "Controls of a framework in canonical order",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseArray("Controls", "Control"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "POST", Pattern: "", Handler: h.Import, OpenAPI: &openapi.Operation{
				Summary:     "Import a framework catalog (YAML or JSON)",
				RequestBody: openapi.RequestBodyJSON("Catalog", true),
				Responses: map[int]*openapi.Response{
					201: openapi.ResponseJSON("Imported framework", "Framework"),
					400: openapi.ResponseRef("BadRequest"),
					409: openapi.ResponseRef("Conflict"),
				},
			}},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: &openapi.Operation{
				Summary:    "Delete a framework",
				Parameters: []*openapi.Parameter{id},
				Responses:  map[int]*openapi.Response{204: openapi.ResponseEmpty("Deleted"), 404: openapi.ResponseRef("NotFound")},
			}},
		},
	}
}

// List returns a paginated list of frameworks filtered by query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search accepts a JSON body with pagination and filter criteria.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single framework.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	f, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, f)
}

// Controls returns a framework's controls in canonical order.
func (h *Handler) Controls(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	controls, err := h.sys.Controls(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, controls)
}

// Import parses a YAML or JSON catalog body and stores it.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxCatalogSize))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge,
			fmt.Errorf("catalog exceeds %d bytes: %w", MaxCatalogSize, err))
		return
	}

	catalog, err := ParseCatalog(data)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	f, err := h.sys.Import(r.Context(), catalog)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, f)
}

// Delete removes a framework and its controls.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
