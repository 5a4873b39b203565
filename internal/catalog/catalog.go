// Package catalog resolves lab resources to the image that backs them.
package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("lab not found")

// Entry is one lab in the catalog. Image is empty for labs that are
// worked from the workstation instead of a dedicated target.
type Entry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Difficulty   string `json:"difficulty"`
	Category     string `json:"category"`
	Image        string `json:"image,omitempty"`
	InternalPort int    `json:"internal_port,omitempty"`
}

// Containerized reports whether the lab declares an image.
func (e *Entry) Containerized() bool {
	return e.Image != ""
}

// Lookup is the read side used by the session manager.
type Lookup interface {
	Get(ctx context.Context, id string) (*Entry, error)
}
