package session

import (
	"context"

	"github.com/p-arndt/labkasten/internal/catalog"
	"github.com/p-arndt/labkasten/internal/driver"
)

// Driver is the container runtime the manager provisions through.
type Driver = driver.Driver

// Catalog resolves lab ids to the image backing them.
type Catalog interface {
	Get(ctx context.Context, id string) (*catalog.Entry, error)
}
