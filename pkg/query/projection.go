// Package query provides SQL query building utilities with projection mapping.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps view property names to qualified column references
// (alias.column) for a base table and any joined tables. View names match
// case-insensitively and ignore underscores, so "CreatedAt" and
// "created_at" name the same property.
type ProjectionMap struct {
	base       string
	joins      []string
	alias      string
	columns    map[string]string
	columnList []string
}

// NewProjectionMap creates a ProjectionMap rooted at schema.table with the given alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		base:    fmt.Sprintf("%s.%s %s", schema, table, alias),
		alias:   alias,
		columns: make(map[string]string),
	}
}

// Project maps a column of the current alias to a view property name.
// After Join, projected columns belong to the joined table.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	return p.ProjectExpr(fmt.Sprintf("%s.%s", p.alias, column), viewName)
}

// ProjectExpr maps an arbitrary SQL expression to a view property name.
func (p *ProjectionMap) ProjectExpr(expr, viewName string) *ProjectionMap {
	p.columns[key(viewName)] = expr
	p.columnList = append(p.columnList, expr)
	return p
}

// Join adds a joined table and makes its alias current for subsequent Project calls.
func (p *ProjectionMap) Join(schema, table, alias, kind, on string) *ProjectionMap {
	p.joins = append(p.joins, fmt.Sprintf("%s %s.%s %s ON %s", kind, schema, table, alias, on))
	p.alias = alias
	return p
}

// From returns the FROM clause body including joins.
func (p *ProjectionMap) From() string {
	if len(p.joins) == 0 {
		return p.base
	}
	return p.base + " " + strings.Join(p.joins, " ")
}

// Column returns the qualified column for a view property name, or the input if not mapped.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.columns[key(viewName)]; ok {
		return col
	}
	return viewName
}

// Has reports whether viewName is projected.
func (p *ProjectionMap) Has(viewName string) bool {
	_, ok := p.columns[key(viewName)]
	return ok
}

func key(viewName string) string {
	return strings.ToLower(strings.ReplaceAll(viewName, "_", ""))
}

// Columns returns all mapped columns as a comma-separated string.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.columnList, ", ")
}
