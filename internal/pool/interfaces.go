package pool

import "context"

// ImageRuntime is the slice of the container driver the warmer needs.
type ImageRuntime interface {
	ImageExists(ctx context.Context, image string) (bool, error)
	PullImage(ctx context.Context, image string) error
}
