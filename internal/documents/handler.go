package documents

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/attest/pkg/formatting"
	"github.com/JaimeStill/attest/pkg/handlers"
	"github.com/JaimeStill/attest/pkg/openapi"
	"github.com/JaimeStill/attest/pkg/pagination"
	"github.com/JaimeStill/attest/pkg/routes"
)

// Handler provides HTTP endpoints for document operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, pagination config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "documents"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for document endpoints.
func (h *Handler) Routes() routes.Group {
	id := openapi.PathParam("id", "Document ID")
	textBody := &openapi.RequestBody{
		Required: true,
		Content: map[string]*openapi.MediaType{
			"text/plain": {Schema: &openapi.Schema{Type: "string", Description: "Pages separated by form feeds"}},
		},
	}

	return routes.Group{
		Prefix:  "/documents",
		Tags:    []string{"Documents"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: &openapi.Operation{
				Summary: "List documents",
				Parameters: []*openapi.Parameter{
					openapi.QueryParam("organization_id", "string", "Owning organization", false),
					openapi.QueryParam("status", "string", "uploaded or prepared", false),
					openapi.QueryParam("filename", "string", "Filename contains", false),
					openapi.QueryParam("content_type", "string", "Exact content type", false),
				},
				Responses: map[int]*openapi.Response{200: openapi.ResponseJSON("Page of documents", "DocumentPage")},
			}},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: &openapi.Operation{
				Summary:     "Search documents",
				RequestBody: openapi.RequestBodyJSON("PageRequest", false),
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Page of documents", "DocumentPage"),
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: &openapi.Operation{
				Summary:    "Find a document",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Document", "Document"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "GET", Pattern: "/{id}/file", Handler: h.Download, OpenAPI: &openapi.Operation{
				Summary:    "Download the uploaded file",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseContent("File content", "application/octet-stream", &openapi.Schema{Type: "string", Format: "binary"}),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "GET", Pattern: "/{id}/text", Handler: h.Text, OpenAPI: &openapi.Operation{
				Summary:    "Prepared text of a document",
				Parameters: []*openapi.Parameter{id},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseContent("Prepared text", "text/plain", &openapi.Schema{Type: "string"}),
					404: openapi.ResponseRef("NotFound"),
					409: openapi.ResponseRef("Conflict"),
				},
			}},
			{Method: "POST", Pattern: "", Handler: h.Upload, OpenAPI: &openapi.Operation{
				Summary: "Upload a document",
				RequestBody: &openapi.RequestBody{
					Required: true,
					Content: map[string]*openapi.MediaType{
						"multipart/form-data": {Schema: &openapi.Schema{
							Type:     "object",
							Required: []string{"file", "organization_id"},
							Properties: map[string]*openapi.Schema{
								"file":            {Type: "string", Format: "binary"},
								"organization_id": {Type: "string", Format: "uuid"},
							},
						}},
					},
				},
				Responses: map[int]*openapi.Response{
					201: openapi.ResponseJSON("Uploaded document", "Document"),
					400: openapi.ResponseRef("BadRequest"),
					413: openapi.ResponseEmpty("File too large"),
				},
			}},
			{Method: "PUT", Pattern: "/{id}/text", Handler: h.SetText, OpenAPI: &openapi.Operation{
				Summary:     "Store prepared text for a document",
				Parameters:  []*openapi.Parameter{id},
				RequestBody: textBody,
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Prepared document", "Document"),
					400: openapi.ResponseRef("BadRequest"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: &openapi.Operation{
				Summary:    "Delete a document",
				Parameters: []*openapi.Parameter{id},
				Responses:  map[int]*openapi.Response{204: openapi.ResponseEmpty("Deleted"), 404: openapi.ResponseRef("NotFound")},
			}},
		},
	}
}

// List returns a paginated list of documents with optional query parameter filters.
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

// Find returns a single document by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	doc, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching documents.
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

// Upload processes a multipart form upload containing a file and its owning
// organization. PDF page counts are extracted with pdfcpu.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge,
			fmt.Errorf("%w: limit is %s", ErrFileTooLarge, formatting.FormatBytes(h.maxUploadSize, 0)))
		return
	}

	orgID, err := uuid.Parse(r.FormValue("organization_id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.Join(ErrInvalidFile, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), data)

	cmd := CreateCommand{
		Data:           data,
		Filename:       header.Filename,
		ContentType:    contentType,
		OrganizationID: orgID,
		PageCount:      extractPDFPageCount(h.logger, data, contentType),
	}

	doc, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, doc)
}

// Download streams the uploaded file as an attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	doc, body, err := h.sys.Open(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	if doc.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(doc.Filename)))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("document download interrupted", "id", id, "error", err)
	}
}

// Text writes a document's prepared text as text/plain.
func (h *Handler) Text(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	text, err := h.sys.Text(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, text)
}

// SetText stores the request body as the document's prepared text.
func (h *Handler) SetText(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	text, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadSize))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
		return
	}

	doc, err := h.sys.SetText(r.Context(), id, text)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Delete removes a document by its UUID path parameter.
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

func detectContentType(header string, data []byte) string {
	header = strings.TrimSpace(header)
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return http.DetectContentType(data)
}

func extractPDFPageCount(logger *slog.Logger, data []byte, contentType string) *int {
	if contentType != "application/pdf" {
		return nil
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logger.Warn("failed to extract PDF page count", "error", err)
		return nil
	}

	return &count
}
