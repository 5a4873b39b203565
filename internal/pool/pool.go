// Package pool pre-pulls the images labs and the workstation run from, so
// the first start of a lab does not block on a registry download.
package pool

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Warmer pulls a set of images with a bounded number of workers.
type Warmer struct {
	runtime     ImageRuntime
	workers     int
	pullTimeout time.Duration
	logger      *slog.Logger
}

// Report is the per-image outcome of one Warm call.
type Report struct {
	Present []string
	Pulled  []string
	Failed  map[string]error
}

func New(rt ImageRuntime, workers int, pullTimeout time.Duration, logger *slog.Logger) *Warmer {
	if workers <= 0 {
		workers = 1
	}
	return &Warmer{
		runtime:     rt,
		workers:     workers,
		pullTimeout: pullTimeout,
		logger:      logger,
	}
}

// Warm makes sure every image is available locally. Empty and duplicate
// names are ignored. It returns once all images are handled or ctx ends.
func (w *Warmer) Warm(ctx context.Context, images []string) Report {
	images = Dedupe(images)
	report := Report{Failed: make(map[string]error)}
	if len(images) == 0 {
		return report
	}

	w.logger.Info("warming images", "count", len(images), "workers", w.workers)

	var mu sync.Mutex
	jobs := make(chan string)
	var wg sync.WaitGroup
	for range min(w.workers, len(images)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for image := range jobs {
				pulled, err := w.warmOne(ctx, image)
				mu.Lock()
				switch {
				case err != nil:
					report.Failed[image] = err
				case pulled:
					report.Pulled = append(report.Pulled, image)
				default:
					report.Present = append(report.Present, image)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, image := range images {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- image:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	slices.Sort(report.Present)
	slices.Sort(report.Pulled)
	w.logger.Info("image warm-up finished",
		"present", len(report.Present), "pulled", len(report.Pulled), "failed", len(report.Failed))
	return report
}

func (w *Warmer) warmOne(ctx context.Context, image string) (bool, error) {
	ok, err := w.runtime.ImageExists(ctx, image)
	if err != nil {
		w.logger.Warn("image check failed", "image", image, "error", err)
		return false, err
	}
	if ok {
		return false, nil
	}

	pullCtx := ctx
	if w.pullTimeout > 0 {
		var cancel context.CancelFunc
		pullCtx, cancel = context.WithTimeout(ctx, w.pullTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := w.runtime.PullImage(pullCtx, image); err != nil {
		w.logger.Warn("image pull failed", "image", image, "error", err)
		return false, err
	}
	w.logger.Info("image pulled", "image", image, "elapsed", time.Since(start).Round(time.Millisecond))
	return true, nil
}

// Dedupe drops empty names and repeats, keeping first-seen order.
func Dedupe(images []string) []string {
	seen := make(map[string]struct{}, len(images))
	out := make([]string, 0, len(images))
	for _, image := range images {
		if image == "" {
			continue
		}
		if _, ok := seen[image]; ok {
			continue
		}
		seen[image] = struct{}{}
		out = append(out, image)
	}
	return out
}
