package documents

import "github.com/JaimeStill/attest/pkg/openapi"

// Schemas returns the OpenAPI component schemas for the documents domain.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Document": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":              {Type: "string", Format: "uuid"},
				"organization_id": {Type: "string", Format: "uuid"},
				"filename":        {Type: "string"},
				"content_type":    {Type: "string"},
				"size_bytes":      {Type: "integer"},
				"page_count":      {Type: "integer"},
				"storage_key":     {Type: "string"},
				"text_key":        {Type: "string"},
				"status":          {Type: "string", Enum: []any{"uploaded", "prepared"}},
				"uploaded_at":     {Type: "string", Format: "date-time"},
				"updated_at":      {Type: "string", Format: "date-time"},
			},
		},
		"DocumentPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Document")},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
				"has_more":    {Type: "boolean"},
			},
		},
	}
}
