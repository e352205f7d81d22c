// Package frameworks manages compliance framework catalogs: a named,
// versioned framework and its controls in canonical order.
package frameworks

import (
	"time"

	"github.com/google/uuid"
)

// Framework is a named, versioned catalog of controls.
type Framework struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Description  *string   `json:"description"`
	ControlCount int       `json:"control_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Control is one discrete requirement of a framework. Position defines the
// framework's canonical evaluation order.
type Control struct {
	ID          uuid.UUID `json:"id"`
	FrameworkID uuid.UUID `json:"framework_id"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Requirement string    `json:"requirement"`
	Position    int       `json:"position"`
}
