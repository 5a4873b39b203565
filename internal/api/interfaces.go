package api

import (
	"context"

	"github.com/p-arndt/labkasten/internal/catalog"
	"github.com/p-arndt/labkasten/internal/session"
)

// SessionService abstracts the lifecycle operations needed by API handlers.
type SessionService interface {
	Start(ctx context.Context, key session.Key) (*session.Session, error)
	Stop(ctx context.Context, key session.Key) session.StopResult
	Status(ctx context.Context, key session.Key) *session.Session
	Execute(ctx context.Context, key session.Key, command string) (*session.ExecResult, error)
	List(owner string) []session.Session
	Ping(ctx context.Context) error
}

// CatalogService is the read side of the lab catalog.
type CatalogService interface {
	List(ctx context.Context) ([]*catalog.Entry, error)
	Get(ctx context.Context, id string) (*catalog.Entry, error)
}
