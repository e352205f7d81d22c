package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SortField represents a single column in an ORDER BY clause.
// Field is the logical field name (mapped via ProjectionMap).
type SortField struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// condition renders one WHERE predicate, binding arguments through bind,
// which returns the positional placeholder for the argument.
type condition func(bind func(arg any) string) string

// Builder constructs SQL queries using a fluent API with positional parameters.
type Builder struct {
	projection  *ProjectionMap
	conditions  []condition
	orderBy     []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder for the given projection with optional default sort fields.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// ParseSortFields parses a comma-separated sort string such as "name,-createdAt".
// Fields prefixed with "-" sort descending. Returns nil for empty input.
func ParseSortFields(s string) []SortField {
	if s == "" {
		return nil
	}

	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// Build returns a SELECT query with the current conditions and ordering.
func (b *Builder) Build() (string, []any) {
	where, args := b.where()
	return fmt.Sprintf(
		"SELECT %s FROM %s%s%s",
		b.projection.Columns(), b.projection.From(), where, b.order(),
	), args
}

// BuildCount returns a COUNT(*) query with the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.where()
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.From(), where), args
}

// BuildPage returns a paginated SELECT query with ordering, limit, and offset.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	query, args := b.Build()
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, pageSize, (page-1)*pageSize), args
}

// BuildSingle returns a SELECT query for a single record by ID, ignoring
// any accumulated conditions.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(), b.projection.From(), b.projection.Column(idField),
	), []any{id}
}

// OrderByFields sets the sort order, overriding default sort fields.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.orderBy = fields
	return b
}

// WhereEquals adds an equality condition. No-op for nil values.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	col := b.projection.Column(field)
	b.conditions = append(b.conditions, func(bind func(any) string) string {
		return col + " = " + bind(value)
	})
	return b
}

// WhereContains adds a case-insensitive ILIKE condition. No-op for nil or empty values.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	col := b.projection.Column(field)
	pattern := "%" + *value + "%"
	b.conditions = append(b.conditions, func(bind func(any) string) string {
		return col + " ILIKE " + bind(pattern)
	})
	return b
}

// WhereIn adds an IN condition for multiple values. No-op for empty slices.
func (b *Builder) WhereIn(field string, values []any) *Builder {
	if len(values) == 0 {
		return b
	}
	col := b.projection.Column(field)
	b.conditions = append(b.conditions, func(bind func(any) string) string {
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = bind(v)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", "))
	})
	return b
}

// WhereSearch adds an OR of ILIKE conditions across fields. No-op for nil or empty search.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	pattern := "%" + *search + "%"
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = b.projection.Column(f)
	}
	b.conditions = append(b.conditions, func(bind func(any) string) string {
		clauses := make([]string, len(cols))
		for i, col := range cols {
			clauses[i] = col + " ILIKE " + bind(pattern)
		}
		return "(" + strings.Join(clauses, " OR ") + ")"
	})
	return b
}

func (b *Builder) where() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	var args []any
	bind := func(arg any) string {
		args = append(args, arg)
		return "$" + strconv.Itoa(len(args))
	}

	clauses := make([]string, len(b.conditions))
	for i, cond := range b.conditions {
		clauses[i] = cond(bind)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (b *Builder) order() string {
	fields := b.orderBy
	if len(fields) == 0 {
		fields = b.defaultSort
	}
	if len(fields) == 0 {
		return ""
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		// sort input comes from callers; only projected fields reach the SQL
		if !b.projection.Has(f.Field) {
			continue
		}
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts = append(parts, b.projection.Column(f.Field)+" "+dir)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
