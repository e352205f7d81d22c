package analyses

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/JaimeStill/attest/internal/workflow"
	"github.com/JaimeStill/attest/pkg/broadcast"
	"github.com/JaimeStill/attest/pkg/handlers"
	"github.com/JaimeStill/attest/pkg/openapi"
	"github.com/JaimeStill/attest/pkg/pagination"
	"github.com/JaimeStill/attest/pkg/routes"
)

const (
	heartbeatInterval = 15 * time.Second
	writeTimeout      = 10 * time.Second
)

// Engine runs analyses. It is implemented by *workflow.Orchestrator.
type Engine interface {
	Start(ctx context.Context, cmd workflow.StartCommand) (*workflow.Job, error)
	Snapshot(ctx context.Context, id uuid.UUID) (*workflow.Job, error)
	Subscribe(ctx context.Context, id uuid.UUID) (*broadcast.Subscription[workflow.ProgressEvent], error)
	Cancel(ctx context.Context, id uuid.UUID) (*workflow.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler provides HTTP endpoints for analysis operations.
type Handler struct {
	sys        System
	engine     Engine
	logger     *slog.Logger
	pagination pagination.Config
	upgrader   websocket.Upgrader
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler serving stored analyses from sys and running
// ones through engine.
func NewHandler(sys System, engine Engine, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		engine:     engine,
		logger:     logger.With("handler", "analyses"),
		pagination: pagination,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes returns the route group definition for analysis endpoints.
func (h *Handler) Routes() routes.Group {
	id := openapi.PathParam("id", "Analysis ID")

	return routes.Group{
		Prefix:  "/analyses",
		Tags:    []string{"Analyses"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Start, OpenAPI: &openapi.Operation{
				Summary:     "Start an evidence analysis",
				RequestBody: openapi.RequestBodyJSON("StartCommand", true),
				Responses: map[int]*openapi.Response{
					202: openapi.ResponseJSON("Queued analysis", "Analysis"),
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: &openapi.Operation{
				Summary: "List analyses",
				Parameters: []*openapi.Parameter{
					openapi.QueryParam("organization_id", "string", "Owning organization", false),
					openapi.QueryParam("framework_id", "string", "Evaluated framework", false),
					openapi.QueryParam("state", "string", "Lifecycle state", false),
				},
				Responses: map[int]*openapi.Response{200: openapi.ResponseJSON("Page of analyses", "AnalysisPage")},
			}},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: &openapi.Operation{
				Summary:     "Search analyses",
				RequestBody: openapi.RequestBodyJSON("PageRequest", false),
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Page of analyses", "AnalysisPage"),
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: &openapi.Operation{
				Summary:    "Snapshot of an analysis",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Analysis", "Analysis"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "GET", Pattern: "/{id}/evidence", Handler: h.Evidence, OpenAPI: &openapi.Operation{
				Summary:    "Evidence mappings of an analysis",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseArray("Mappings in control order", "EvidenceMapping"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "GET", Pattern: "/{id}/events", Handler: h.Events, OpenAPI: &openapi.Operation{
				Summary:    "Progress stream as server-sent events",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseContent("Progress events", "text/event-stream", openapi.SchemaRef("ProgressEvent")),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "GET", Pattern: "/{id}/stream", Handler: h.Stream, OpenAPI: &openapi.Operation{
				Summary:    "Progress stream over a WebSocket",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					101: openapi.ResponseEmpty("Switching protocols"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel, OpenAPI: &openapi.Operation{
				Summary:    "Cancel a running analysis",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					202: openapi.ResponseJSON("Cancel accepted", "Analysis"),
					404: openapi.ResponseRef("NotFound"),
					409: openapi.ResponseRef("Conflict"),
				},
			}},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: &openapi.Operation{
				Summary:    "Delete a finished analysis",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					204: openapi.ResponseEmpty("Deleted"),
					404: openapi.ResponseRef("NotFound"),
					409: openapi.ResponseRef("Conflict"),
				},
			}},
		},
	}
}

// Start queues a new analysis and returns 202 with its snapshot.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var cmd workflow.StartCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", workflow.ErrInvalidCommand, err))
		return
	}

	job, err := h.engine.Start(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Location", "/analyses/"+job.ID.String())
	handlers.RespondJSON(w, http.StatusAccepted, StartResponse{JobID: job.ID, Job: job})
}

// List returns a paginated list of analyses with optional query parameter filters.
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

// Search accepts a JSON body with pagination and filter criteria and returns matching analyses.
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

// Find returns the latest snapshot of an analysis.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	job, err := h.engine.Snapshot(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, job)
}

// Evidence returns the stored mappings of an analysis.
func (h *Handler) Evidence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	mappings, err := h.sys.Evidence(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, mappings)
}

// Events streams progress as server-sent events until the terminal event
// or until the client disconnects.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sub, err := h.engine.Subscribe(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer sub.Close()

	rc := http.NewResponseController(w)
	// the stream outlives the server write timeout
	rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("event stream flush unsupported", "error", err)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				h.logger.Debug("event stream closed", "job_id", id, "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
			if ev.Terminal {
				return
			}
		}
	}
}

// Stream delivers progress over a WebSocket as JSON text frames. The server
// closes the connection with a normal closure after the terminal event.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sub, err := h.engine.Subscribe(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "job_id", id, "error", err)
		return
	}
	defer conn.Close()

	// the read side only drains control frames and notices the peer leaving
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-gone:
			return
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case ev, ok := <-sub.Events():
			if !ok {
				closeNormal(conn)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket stream closed", "job_id", id, "error", err)
				return
			}
			if ev.Terminal {
				closeNormal(conn)
				return
			}
		}
	}
}

// Cancel requests cancellation of a running analysis.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	job, err := h.engine.Cancel(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, job)
}

// Delete removes a finished analysis and its evidence.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.engine.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", workflow.ErrInvalidCommand))
		return uuid.Nil, false
	}
	return id, true
}

func writeEvent(w http.ResponseWriter, ev workflow.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	name := "progress"
	if ev.Terminal {
		name = string(ev.Stage)
	}

	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Sequence, name, data)
	return err
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "analysis finished")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
