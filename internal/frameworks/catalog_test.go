package frameworks_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/JaimeStill/attest/internal/frameworks"
)

const isoCatalog = `
name: ISO/IEC 27001
version: "2022"
description: Information security management
controls:
  - code: A.5.1
    title: Policies for information security
    requirement: Information security policy shall be defined and approved.
  - code: A.5.2
    title: Information security roles and responsibilities
  - code: A.8.24
    title: Use of cryptography
`

func TestParseCatalogYAML(t *testing.T) {
	c, err := frameworks.ParseCatalog([]byte(isoCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}

	if c.Name != "ISO/IEC 27001" || c.Version != "2022" {
		t.Errorf("name/version = %q/%q", c.Name, c.Version)
	}
	if len(c.Controls) != 3 {
		t.Fatalf("controls = %d, want 3", len(c.Controls))
	}
	if c.Controls[0].Code != "A.5.1" || c.Controls[2].Code != "A.8.24" {
		t.Errorf("control order not preserved: %+v", c.Controls)
	}
	if c.Controls[0].Requirement == "" {
		t.Error("requirement not decoded")
	}
}

func TestParseCatalogJSON(t *testing.T) {
	data := `{"name":"SOC 2","version":"2017","controls":[{"code":"CC6.1","title":"Logical access"}]}`

	c, err := frameworks.ParseCatalog([]byte(data))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if c.Name != "SOC 2" || len(c.Controls) != 1 {
		t.Errorf("unexpected catalog %+v", c)
	}
}

func TestParseCatalogValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", "name: [unterminated"},
		{"missing name", "controls:\n  - code: A\n    title: T\n"},
		{"no controls", "name: Empty\n"},
		{"blank code", "name: X\ncontrols:\n  - code: '  '\n    title: T\n"},
		{"blank title", "name: X\ncontrols:\n  - code: A\n"},
		{"duplicate code", "name: X\ncontrols:\n  - code: A\n    title: T\n  - code: ' A '\n    title: U\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := frameworks.ParseCatalog([]byte(tt.data))
			if !errors.Is(err, frameworks.ErrInvalidCatalog) {
				t.Errorf("err = %v, want ErrInvalidCatalog", err)
			}
			if frameworks.MapHTTPStatus(err) != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", frameworks.MapHTTPStatus(err))
			}
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{frameworks.ErrNotFound, http.StatusNotFound},
		{frameworks.ErrDuplicate, http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := frameworks.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
