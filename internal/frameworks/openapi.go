package frameworks

import "github.com/JaimeStill/attest/pkg/openapi"

// Schemas returns the OpenAPI component schemas for the frameworks domain.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Framework": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":            {Type: "string", Format: "uuid"},
				"name":          {Type: "string"},
				"version":       {Type: "string"},
				"description":   {Type: "string"},
				"control_count": {Type: "integer"},
				"created_at":    {Type: "string", Format: "date-time"},
			},
		},
		"Control": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":           {Type: "string", Format: "uuid"},
				"framework_id": {Type: "string", Format: "uuid"},
				"code":         {Type: "string", Example: "A.5.1"},
				"title":        {Type: "string"},
				"description":  {Type: "string"},
				"requirement":  {Type: "string"},
				"position":     {Type: "integer"},
			},
		},
		"Catalog": {
			Type:     "object",
			Required: []string{"name", "controls"},
			Properties: map[string]*openapi.Schema{
				"name":        {Type: "string"},
				"version":     {Type: "string"},
				"description": {Type: "string"},
				"controls": {Type: "array", Items: &openapi.Schema{
					Type:     "object",
					Required: []string{"code", "title"},
					Properties: map[string]*openapi.Schema{
						"code":        {Type: "string"},
						"title":       {Type: "string"},
						"description": {Type: "string"},
						"requirement": {Type: "string"},
					},
				}},
			},
		},
		"FrameworkPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Framework")},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
				"has_more":    {Type: "boolean"},
			},
		},
	}
}
