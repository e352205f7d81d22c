package analyses

import (
	"maps"

	"github.com/JaimeStill/attest/pkg/openapi"
)

var states = []any{"queued", "preparing", "evaluating", "finalizing", "completed", "failed"}

// Schemas returns the OpenAPI component schemas for the analyses domain.
func Schemas() map[string]*openapi.Schema {
	totals := map[string]*openapi.Schema{
		"total_controls":  {Type: "integer"},
		"completed_count": {Type: "integer"},
		"compliant_count": {Type: "integer"},
		"partial_count":   {Type: "integer"},
		"missing_count":   {Type: "integer"},
		"failed_count":    {Type: "integer"},
	}

	analysis := map[string]*openapi.Schema{
		"id":                 {Type: "string", Format: "uuid"},
		"job_id":             {Type: "string", Format: "uuid", Description: "Set on the start response"},
		"organization_id":    {Type: "string", Format: "uuid"},
		"framework_id":       {Type: "string", Format: "uuid"},
		"document_ids":       {Type: "array", Items: &openapi.Schema{Type: "string", Format: "uuid"}},
		"state":              {Type: "string", Enum: states},
		"progress":           {Type: "integer", Description: "0 to 100"},
		"average_confidence": {Type: "number"},
		"processing_ms":      {Type: "integer"},
		"error":              {Type: "string", Nullable: true},
		"created_at":         {Type: "string", Format: "date-time"},
		"started_at":         {Type: "string", Format: "date-time", Nullable: true},
		"completed_at":       {Type: "string", Format: "date-time", Nullable: true},
	}
	maps.Copy(analysis, totals)

	return map[string]*openapi.Schema{
		"StartCommand": {
			Type:     "object",
			Required: []string{"organization_id", "framework_id", "document_ids"},
			Properties: map[string]*openapi.Schema{
				"organization_id": {Type: "string", Format: "uuid"},
				"framework_id":    {Type: "string", Format: "uuid"},
				"document_ids":    {Type: "array", Items: &openapi.Schema{Type: "string", Format: "uuid"}},
			},
		},
		"Analysis": {Type: "object", Properties: analysis},
		"AnalysisPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        openapi.ArrayOf("Analysis"),
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
				"has_more":    {Type: "boolean"},
			},
		},
		"ProgressEvent": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"job_id":    {Type: "string", Format: "uuid"},
				"sequence":  {Type: "integer"},
				"stage":     {Type: "string", Enum: states},
				"progress":  {Type: "integer"},
				"step":      {Type: "string"},
				"totals":    {Type: "object", Properties: totals},
				"outcome":   {Type: "object"},
				"terminal":  {Type: "boolean"},
				"replay":    {Type: "boolean"},
				"error":     {Type: "string"},
				"timestamp": {Type: "string", Format: "date-time"},
			},
		},
		"EvidenceMapping": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":           {Type: "string", Format: "uuid"},
				"analysis_id":  {Type: "string", Format: "uuid"},
				"control_id":   {Type: "string", Format: "uuid"},
				"control_code": {Type: "string"},
				"position":     {Type: "integer"},
				"status":       {Type: "string", Enum: []any{"compliant", "partial", "missing"}},
				"confidence":   {Type: "number"},
				"reasoning":    {Type: "string"},
				"failed":       {Type: "boolean"},
				"attempts":     {Type: "integer"},
				"created_at":   {Type: "string", Format: "date-time"},
				"items":        {Type: "array", Items: openapi.SchemaRef("EvidenceItem")},
			},
		},
		"EvidenceItem": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":            {Type: "string", Format: "uuid"},
				"mapping_id":    {Type: "string", Format: "uuid"},
				"position":      {Type: "integer"},
				"document_id":   {Type: "string", Format: "uuid"},
				"document_name": {Type: "string"},
				"page_number":   {Type: "integer"},
				"locator":       {Type: "string"},
				"text":          {Type: "string"},
				"relevance":     {Type: "number"},
			},
		},
	}
}
