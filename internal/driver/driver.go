// Package driver defines the container runtime contract the session
// manager is written against, along with the failure taxonomy every
// implementation classifies runtime errors into.
//
// Implementations live in internal/docker (Engine API) and
// internal/dockercli (docker/podman binary). All methods block until the
// runtime answers or ctx expires; a deadline is reported as ErrTimeout.
package driver

import (
	"context"
)

// RunOpts describes a detached container with one published port.
type RunOpts struct {
	Name         string
	Image        string
	HostPort     int
	InternalPort int
	Cmd          []string // nil keeps the image default
	Labels       map[string]string
	Resources    Resources
}

// Resources are optional limits; zero values mean unlimited.
type Resources struct {
	NanoCPUs    int64
	MemoryBytes int64
	PidsLimit   int64
}

// ExecResult is the captured outcome of a command run inside a container.
type ExecResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// Driver is the capability set the lifecycle manager needs from a runtime.
type Driver interface {
	// Ping reports whether the runtime is reachable.
	Ping(ctx context.Context) error

	ImageExists(ctx context.Context, image string) (bool, error)
	PullImage(ctx context.Context, image string) error

	// RunDetached creates and starts a container, returning its id.
	RunDetached(ctx context.Context, opts RunOpts) (string, error)

	// Remove force-removes the named container. A missing container is not an error.
	Remove(ctx context.Context, name string) error

	// InspectRunning reports whether the named container is running.
	// It fails with ErrNotFound when no such container exists.
	InspectRunning(ctx context.Context, name string) (bool, error)

	// PublishedPorts returns the host ports bound by the named container.
	PublishedPorts(ctx context.Context, name string) ([]int, error)

	// Exec runs cmd inside the named container and captures its output.
	// A non-zero exit code is reported in the result, not as an error.
	Exec(ctx context.Context, name string, cmd []string) (*ExecResult, error)

	Logs(ctx context.Context, name string, tailLines int) (string, error)
}
