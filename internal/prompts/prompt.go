// Package prompts manages named instruction overrides for engine stages.
// An override is global or scoped to one framework. Resolution prefers the
// framework's active override, then the active global override, then the
// built-in default. The response specification of a stage is never
// overridable.
package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prompt is a named instruction override for a stage.
type Prompt struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Stage        Stage      `json:"stage"`
	FrameworkID  *uuid.UUID `json:"framework_id"`
	Instructions string     `json:"instructions"`
	Description  *string    `json:"description"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Command carries the writable fields of an override, for create and
// update alike. A nil FrameworkID makes the override global.
type Command struct {
	Name         string     `json:"name"`
	Stage        Stage      `json:"stage"`
	FrameworkID  *uuid.UUID `json:"framework_id"`
	Instructions string     `json:"instructions"`
	Description  *string    `json:"description"`
}

// Validate trims the name and rejects incomplete commands.
func (c *Command) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidCommand)
	}
	if strings.TrimSpace(c.Instructions) == "" {
		return fmt.Errorf("%w: instructions required", ErrInvalidCommand)
	}
	if c.FrameworkID != nil && *c.FrameworkID == uuid.Nil {
		return fmt.Errorf("%w: framework_id must not be the nil uuid", ErrInvalidCommand)
	}
	_, err := ParseStage(string(c.Stage))
	return err
}

// Source names where resolved instructions came from.
type Source string

const (
	SourceFramework Source = "framework"
	SourceGlobal    Source = "global"
	SourceDefault   Source = "default"
)

// Resolved is the effective instruction text of a stage.
type Resolved struct {
	Stage        Stage      `json:"stage"`
	Source       Source     `json:"source"`
	PromptID     *uuid.UUID `json:"prompt_id,omitempty"`
	Instructions string     `json:"instructions"`
}
