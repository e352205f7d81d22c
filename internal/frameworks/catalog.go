package frameworks

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the importable form of a framework. It is decoded from YAML,
// which also accepts JSON documents.
type Catalog struct {
	Name        string           `yaml:"name" json:"name"`
	Version     string           `yaml:"version" json:"version"`
	Description string           `yaml:"description" json:"description"`
	Controls    []CatalogControl `yaml:"controls" json:"controls"`
}

// CatalogControl is one control entry of a Catalog.
type CatalogControl struct {
	Code        string `yaml:"code" json:"code"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Requirement string `yaml:"requirement" json:"requirement"`
}

// ParseCatalog decodes and validates a YAML or JSON catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate trims whitespace in place and checks required fields and code
// uniqueness.
func (c *Catalog) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Version = strings.TrimSpace(c.Version)

	if c.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidCatalog)
	}
	if len(c.Controls) == 0 {
		return fmt.Errorf("%w: at least one control required", ErrInvalidCatalog)
	}

	seen := make(map[string]int, len(c.Controls))
	for i := range c.Controls {
		ctl := &c.Controls[i]
		ctl.Code = strings.TrimSpace(ctl.Code)
		ctl.Title = strings.TrimSpace(ctl.Title)

		if ctl.Code == "" {
			return fmt.Errorf("%w: control %d has no code", ErrInvalidCatalog, i+1)
		}
		if ctl.Title == "" {
			return fmt.Errorf("%w: control %s has no title", ErrInvalidCatalog, ctl.Code)
		}
		if prev, dup := seen[ctl.Code]; dup {
			return fmt.Errorf("%w: control code %s repeated at positions %d and %d", ErrInvalidCatalog, ctl.Code, prev+1, i+1)
		}
		seen[ctl.Code] = i
	}
	return nil
}
