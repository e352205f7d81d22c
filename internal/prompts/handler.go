package prompts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/pkg/handlers"
	"github.com/JaimeStill/attest/pkg/openapi"
	"github.com/JaimeStill/attest/pkg/pagination"
	"github.com/JaimeStill/attest/pkg/routes"
)

// Handler provides HTTP endpoints for prompt operations.
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

// StageContent is the response of the stage specification endpoint.
type StageContent struct {
	Stage   Stage  `json:"stage"`
	Content string `json:"content"`
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "prompts"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for prompt endpoints.
func (h *Handler) Routes() routes.Group {
	id := openapi.PathParam("id", "Prompt ID")
	stage := &openapi.Parameter{
		Name: "stage", In: "path", Required: true,
		Schema: &openapi.Schema{Type: "string", Enum: []any{string(StageEvaluate)}},
	}
	framework := openapi.QueryParam("framework_id", "string", "Framework whose overrides take precedence", false)
	prompt := func(description string) map[int]*openapi.Response {
		return map[int]*openapi.Response{
			200: openapi.ResponseJSON(description, "Prompt"),
			404: openapi.ResponseRef("NotFound"),
		}
	}

	return routes.Group{
		Prefix:  "/prompts",
		Tags:    []string{"Prompts"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: &openapi.Operation{
				Summary: "List prompt overrides",
				Parameters: []*openapi.Parameter{
					openapi.QueryParam("stage", "string", "Stage", false),
					framework,
					openapi.QueryParam("name", "string", "Name contains", false),
					openapi.QueryParam("active", "boolean", "Active flag", false),
				},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Page of prompts", "PromptPage"),
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: &openapi.Operation{
				Summary:     "Search prompt overrides",
				RequestBody: openapi.RequestBodyJSON("PageRequest", false),
				Responses:   map[int]*openapi.Response{200: openapi.ResponseJSON("Page of prompts", "PromptPage")},
			}},
			{Method: "GET", Pattern: "/stages", Handler: h.Stages, OpenAPI: &openapi.Operation{
				Summary:   "List stages",
				Responses: map[int]*openapi.Response{200: openapi.ResponseContent("Stage names", "application/json", &openapi.Schema{Type: "array", Items: &openapi.Schema{Type: "string"}})},
			}},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: &openapi.Operation{
				Summary:    "Find a prompt override",
				Parameters: []*openapi.Parameter{id},
				Responses:  prompt("Prompt"),
			}},
			{Method: "GET", Pattern: "/{stage}/instructions", Handler: h.Instructions, OpenAPI: &openapi.Operation{
				Summary:    "Effective instructions for a stage",
				Parameters: []*openapi.Parameter{stage, framework},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Resolved instructions", "ResolvedInstructions"),
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
			{Method: "GET", Pattern: "/{stage}/spec", Handler: h.Spec, OpenAPI: &openapi.Operation{
				Summary:    "Response specification for a stage",
				Parameters: []*openapi.Parameter{stage},
				Responses:  map[int]*openapi.Response{200: openapi.ResponseJSON("Stage content", "StageContent")},
			}},
			{Method: "POST", Pattern: "", Handler: h.Create, OpenAPI: &openapi.Operation{
				Summary:     "Create a prompt override",
				RequestBody: openapi.RequestBodyJSON("PromptCommand", true),
				Responses: map[int]*openapi.Response{
					201: openapi.ResponseJSON("Created prompt", "Prompt"),
					400: openapi.ResponseRef("BadRequest"),
					409: openapi.ResponseRef("Conflict"),
				},
			}},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update, OpenAPI: &openapi.Operation{
				Summary:     "Update a prompt override",
				Parameters:  []*openapi.Parameter{id},
				RequestBody: openapi.RequestBodyJSON("PromptCommand", true),
				Responses:   prompt("Updated prompt"),
			}},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: &openapi.Operation{
				Summary:    "Delete a prompt override",
				Parameters: []*openapi.Parameter{id},
				Responses:  map[int]*openapi.Response{204: openapi.ResponseEmpty("Deleted"), 404: openapi.ResponseRef("NotFound")},
			}},
			{Method: "POST", Pattern: "/{id}/activate", Handler: h.Activate, OpenAPI: &openapi.Operation{
				Summary:    "Make a prompt the active override of its stage and framework",
				Parameters: []*openapi.Parameter{id},
				Responses:  prompt("Activated prompt"),
			}},
			{Method: "POST", Pattern: "/{id}/deactivate", Handler: h.Deactivate, OpenAPI: &openapi.Operation{
				Summary:    "Deactivate a prompt override",
				Parameters: []*openapi.Parameter{id},
				Responses:  prompt("Deactivated prompt"),
			}},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	h.list(w, r, page, filters)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	req.PageRequest.Normalize(h.pagination)

	h.list(w, r, req.PageRequest, req.Filters)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, page pagination.PageRequest, filters Filters) {
	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, Stages())
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Find(r.Context(), id))
}

// Instructions resolves the effective instructions of a stage, optionally
// for one framework.
func (h *Handler) Instructions(w http.ResponseWriter, r *http.Request) {
	stage, err := ParseStage(r.PathValue("stage"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	frameworkID := uuid.Nil
	if s := r.URL.Query().Get("framework_id"); s != "" {
		if frameworkID, err = uuid.Parse(s); err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: framework_id: %w", ErrInvalidCommand, err))
			return
		}
	}

	res, err := h.sys.Resolve(r.Context(), stage, frameworkID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, res)
}

// Spec returns the fixed response specification of a stage.
func (h *Handler) Spec(w http.ResponseWriter, r *http.Request) {
	stage, err := ParseStage(r.PathValue("stage"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	text, err := Spec(stage)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, StageContent{Stage: stage, Content: text})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.command(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusCreated)(h.sys.Create(r.Context(), cmd))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	cmd, ok := h.command(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Update(r.Context(), id, cmd))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Activate(r.Context(), id))
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Deactivate(r.Context(), id))
}

// respond writes the result of a single-prompt operation.
func (h *Handler) respond(w http.ResponseWriter, status int) func(*Prompt, error) {
	return func(p *Prompt, err error) {
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
		handlers.RespondJSON(w, status, p)
	}
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request) (Command, bool) {
	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidCommand, err))
		return cmd, false
	}
	if err := cmd.Validate(); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return cmd, false
	}
	return cmd, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: id: %w", ErrInvalidCommand, err))
		return id, false
	}
	return id, true
}
