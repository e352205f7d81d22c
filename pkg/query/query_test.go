package query_test

import (
	"testing"

	"github.com/JaimeStill/attest/pkg/query"
)

func testProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "analyses", "a").
		Project("id", "ID").
		Project("status", "State").
		Project("created_at", "CreatedAt").
		Join("public", "frameworks", "f", "LEFT JOIN", "f.id = a.framework_id").
		Project("name", "FrameworkName")
}

func ptr[T any](v T) *T { return &v }

func TestProjection(t *testing.T) {
	p := testProjection()

	if got, want := p.Columns(), "a.id, a.status, a.created_at, f.name"; got != want {
		t.Errorf("Columns() = %q, want %q", got, want)
	}
	if got, want := p.From(), "public.analyses a LEFT JOIN public.frameworks f ON f.id = a.framework_id"; got != want {
		t.Errorf("From() = %q, want %q", got, want)
	}

	tests := []struct {
		viewName string
		want     string
	}{
		{"State", "a.status"},
		{"FrameworkName", "f.name"},
		{"unknown", "unknown"},
	}
	for _, tt := range tests {
		if got := p.Column(tt.viewName); got != tt.want {
			t.Errorf("Column(%q) = %q, want %q", tt.viewName, got, tt.want)
		}
	}
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		input string
		want  []query.SortField
	}{
		{"", nil},
		{"Name", []query.SortField{{Field: "Name"}}},
		{"-CreatedAt", []query.SortField{{Field: "CreatedAt", Descending: true}}},
		{"Name, -CreatedAt,,", []query.SortField{{Field: "Name"}, {Field: "CreatedAt", Descending: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := query.ParseSortFields(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuilderParameterNumbering(t *testing.T) {
	qb := query.NewBuilder(testProjection(), query.SortField{Field: "CreatedAt", Descending: true}).
		WhereSearch(ptr("iso"), "FrameworkName", "State").
		WhereEquals("State", ptr("completed")).
		WhereEquals("ID", (*string)(nil)).
		WhereIn("ID", []any{"a", "b"})

	sql, args := qb.BuildPage(2, 10)
	want := "SELECT a.id, a.status, a.created_at, f.name FROM public.analyses a LEFT JOIN public.frameworks f ON f.id = a.framework_id" +
		" WHERE (f.name ILIKE $1 OR a.status ILIKE $2) AND a.status = $3 AND a.id IN ($4, $5)" +
		" ORDER BY a.created_at DESC LIMIT 10 OFFSET 10"
	if sql != want {
		t.Errorf("sql =\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 5 {
		t.Fatalf("args = %d, want 5", len(args))
	}

	countSQL, countArgs := qb.BuildCount()
	if countSQL != "SELECT COUNT(*) FROM public.analyses a LEFT JOIN public.frameworks f ON f.id = a.framework_id"+
		" WHERE (f.name ILIKE $1 OR a.status ILIKE $2) AND a.status = $3 AND a.id IN ($4, $5)" {
		t.Errorf("count sql = %s", countSQL)
	}
	if len(countArgs) != 5 {
		t.Errorf("count args = %d, want 5", len(countArgs))
	}
}

func TestBuilderSortIgnoresUnprojectedFields(t *testing.T) {
	qb := query.NewBuilder(testProjection()).
		OrderByFields([]query.SortField{{Field: "1; DROP TABLE analyses"}, {Field: "State"}})

	sql, _ := qb.Build()
	want := "SELECT a.id, a.status, a.created_at, f.name FROM public.analyses a LEFT JOIN public.frameworks f ON f.id = a.framework_id ORDER BY a.status ASC"
	if sql != want {
		t.Errorf("sql = %s", sql)
	}
}

func TestBuildSingle(t *testing.T) {
	sql, args := query.NewBuilder(testProjection()).BuildSingle("ID", "x")
	if sql != "SELECT a.id, a.status, a.created_at, f.name FROM public.analyses a LEFT JOIN public.frameworks f ON f.id = a.framework_id WHERE a.id = $1" {
		t.Errorf("sql = %s", sql)
	}
	if len(args) != 1 || args[0] != "x" {
		t.Errorf("args = %v", args)
	}
}

func TestProjectionSnakeCaseNames(t *testing.T) {
	p := query.NewProjectionMap("public", "analyses", "a").
		Project("created_at", "CreatedAt")

	for _, name := range []string{"CreatedAt", "created_at", "createdat"} {
		if !p.Has(name) {
			t.Errorf("Has(%q) = false", name)
		}
		if got := p.Column(name); got != "a.created_at" {
			t.Errorf("Column(%q) = %q", name, got)
		}
	}
}
