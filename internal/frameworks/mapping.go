package frameworks

import (
	"net/url"

	"github.com/JaimeStill/attest/pkg/query"
	"github.com/JaimeStill/attest/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "frameworks", "f").
	Project("id", "ID").
	Project("name", "Name").
	Project("version", "Version").
	Project("description", "Description").
	ProjectExpr("(SELECT COUNT(*) FROM public.controls c WHERE c.framework_id = f.id)", "ControlCount").
	Project("created_at", "CreatedAt")

var controlProjection = query.
	NewProjectionMap("public", "controls", "c").
	Project("id", "ID").
	Project("framework_id", "FrameworkID").
	Project("code", "Code").
	Project("title", "Title").
	Project("description", "Description").
	Project("requirement", "Requirement").
	Project("position", "Position")

var defaultSort = query.SortField{Field: "Name"}

// Filters contains optional filtering criteria for framework queries.
type Filters struct {
	Name    *string `json:"name,omitempty"`
	Version *string `json:"version,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("Name", f.Name).
		WhereEquals("Version", f.Version)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if n := values.Get("name"); n != "" {
		f.Name = &n
	}
	if v := values.Get("version"); v != "" {
		f.Version = &v
	}
	return f
}

func scanFramework(s repository.Scanner) (Framework, error) {
	var f Framework
	err := s.Scan(&f.ID, &f.Name, &f.Version, &f.Description, &f.ControlCount, &f.CreatedAt)
	return f, err
}

func scanControl(s repository.Scanner) (Control, error) {
	var c Control
	err := s.Scan(&c.ID, &c.FrameworkID, &c.Code, &c.Title, &c.Description, &c.Requirement, &c.Position)
	return c, err
}
