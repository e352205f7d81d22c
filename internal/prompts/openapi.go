package prompts

import "github.com/JaimeStill/attest/pkg/openapi"

// Schemas returns the OpenAPI component schemas for the prompts domain.
func Schemas() map[string]*openapi.Schema {
	stage := &openapi.Schema{Type: "string", Enum: []any{string(StageEvaluate)}}

	return map[string]*openapi.Schema{
		"Prompt": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":           {Type: "string", Format: "uuid"},
				"name":         {Type: "string"},
				"stage":        stage,
				"framework_id": {Type: "string", Format: "uuid", Nullable: true},
				"instructions": {Type: "string"},
				"description":  {Type: "string", Nullable: true},
				"active":       {Type: "boolean"},
				"created_at":   {Type: "string", Format: "date-time"},
				"updated_at":   {Type: "string", Format: "date-time"},
			},
		},
		"PromptCommand": {
			Type:     "object",
			Required: []string{"name", "stage", "instructions"},
			Properties: map[string]*openapi.Schema{
				"name":         {Type: "string"},
				"stage":        stage,
				"framework_id": {Type: "string", Format: "uuid", Description: "Omit for a global override"},
				"instructions": {Type: "string"},
				"description":  {Type: "string"},
			},
		},
		"ResolvedInstructions": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"stage":        stage,
				"source":       {Type: "string", Enum: []any{string(SourceFramework), string(SourceGlobal), string(SourceDefault)}},
				"prompt_id":    {Type: "string", Format: "uuid"},
				"instructions": {Type: "string"},
			},
		},
		"PromptPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        openapi.ArrayOf("Prompt"),
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
				"has_more":    {Type: "boolean"},
			},
		},
		"StageContent": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"stage":   stage,
				"content": {Type: "string"},
			},
		},
	}
}
