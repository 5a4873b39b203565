package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/p-arndt/labkasten/internal/catalog"
	"github.com/p-arndt/labkasten/internal/clock"
	"github.com/p-arndt/labkasten/internal/config"
	"github.com/p-arndt/labkasten/internal/driver"
	"github.com/p-arndt/labkasten/internal/ports"
)

// startLogTail is how many log lines are attached to a failed start.
const startLogTail = 80

// Manager owns the session registry and drives every lifecycle
// transition. Operations on one key are serialized; different keys run
// concurrently.
type Manager struct {
	cfg     *config.Config
	driver  Driver
	catalog Catalog
	clock   clock.Clock
	logger  *slog.Logger

	registry *Registry
	locks    *keyLocks

	labPorts         PortAllocator
	workstationPorts PortAllocator
	resources        driver.Resources
}

func NewManager(cfg *config.Config, drv Driver, cat Catalog, clk clock.Clock, logger *slog.Logger) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	mem, _ := cfg.MemoryBytes()
	return &Manager{
		cfg:              cfg,
		driver:           drv,
		catalog:          cat,
		clock:            clk,
		logger:           logger,
		registry:         NewRegistry(),
		locks:            newKeyLocks(),
		labPorts:         ports.NewAllocator(cfg.Ports.Lab.Base, cfg.Ports.Lab.Span),
		workstationPorts: ports.NewAllocator(cfg.Ports.Workstation.Base, cfg.Ports.Workstation.Span),
		resources: driver.Resources{
			NanoCPUs:    int64(cfg.Limits.CPU * 1e9),
			MemoryBytes: mem,
			PidsLimit:   int64(cfg.Limits.Pids),
		},
	}
}

// target is what a key resolves to before provisioning.
type target struct {
	image        string
	internalPort int
	cmd          []string
	scheme       string
	ports        PortAllocator
}

func (m *Manager) resolve(ctx context.Context, key Key) (*target, error) {
	if key.Kind == KindWorkstation {
		ws := m.cfg.Workstation
		return &target{
			image:        ws.Image,
			internalPort: ws.InternalPort,
			cmd:          ws.Command,
			scheme:       ws.Scheme,
			ports:        m.workstationPorts,
		}, nil
	}

	entry, err := m.catalog.Get(ctx, key.Resource)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResource, key.Resource)
		}
		return nil, fmt.Errorf("lookup lab %s: %w", key.Resource, err)
	}
	if !entry.Containerized() {
		return nil, fmt.Errorf("%w: %s", ErrNotContainerized, key.Resource)
	}
	port := entry.InternalPort
	if port <= 0 {
		port = m.cfg.Lab.DefaultInternalPort
	}
	return &target{
		image:        entry.Image,
		internalPort: port,
		scheme:       m.cfg.Lab.Scheme,
		ports:        m.labPorts,
	}, nil
}

// Start provisions a session for key, or returns the existing one if its
// container is still running. It is idempotent under concurrent callers.
func (m *Manager) Start(ctx context.Context, key Key) (*Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	unlock := m.locks.lock(key)
	defer unlock()

	logger := m.logger.With("key", key.String())

	if existing, ok := m.registry.Get(key); ok {
		if existing.Status == StatusRunning {
			running, err := m.inspectRunning(ctx, existing.ContainerName)
			if err == nil && running {
				return existing, nil
			}
			logger.Info("tracked session no longer running, reprovisioning", "container", existing.ContainerName)
		}
		m.registry.Remove(key)
	}

	tgt, err := m.resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := m.ensureImage(ctx, tgt.image, logger); err != nil {
		return nil, fmt.Errorf("start %s: %w", key, err)
	}

	name := ContainerName(m.cfg.Runtime.NamePrefix, key)

	// A container under our name with no registry entry is left over from
	// a previous run; clear it so the create does not conflict.
	if err := m.remove(ctx, name); err != nil {
		logger.Warn("stale container cleanup failed", "container", name, "error", err)
	}

	now := m.clock.Now()
	sess := &Session{
		Key:            key,
		ContainerName:  name,
		Image:          tgt.image,
		InternalPort:   tgt.internalPort,
		Status:         StatusRequested,
		StartedAt:      now,
		LastActivityAt: now,
	}
	hostPort, err := m.registry.Reserve(sess, 0, tgt.ports)
	if err != nil {
		logger.Error("port allocation failed", "error", err)
		return nil, fmt.Errorf("start %s: %w", key, err)
	}

	runCtx, cancel := withTimeout(ctx, m.cfg.Timeouts.RunTimeout())
	id, err := m.driver.RunDetached(runCtx, driver.RunOpts{
		Name:         name,
		Image:        tgt.image,
		HostPort:     hostPort,
		InternalPort: tgt.internalPort,
		Cmd:          tgt.cmd,
		Labels:       labels(key),
		Resources:    m.resources,
	})
	cancel()
	if err != nil {
		return nil, m.failStart(ctx, sess, err, !errors.Is(err, driver.ErrNameConflict), logger)
	}

	// The runtime may accept the start and have the process die right
	// away; report that with the container's own output.
	if running, ierr := m.inspectRunning(ctx, name); ierr == nil && !running {
		diag := m.tailLogs(ctx, name)
		return nil, m.failStart(ctx, sess, driver.Fail(context.Background(), "start", driver.ErrStartFailed, diag), true, logger)
	} else if ierr != nil {
		logger.Warn("post-start inspect failed", "container", name, "error", ierr)
	}

	sess.ContainerID = id
	sess.Status = StatusRunning
	sess.AccessURL = accessURL(tgt.scheme, m.cfg.PublicHost, hostPort)
	m.registry.Upsert(sess)

	logger.Info("session started", "container", name, "host_port", hostPort, "image", tgt.image)
	return sess, nil
}

// failStart marks sess failed, logs the runtime diagnostic, drops it from
// the registry and optionally removes whatever container was left.
func (m *Manager) failStart(ctx context.Context, sess *Session, cause error, cleanup bool, logger *slog.Logger) error {
	sess.Status = StatusFailed
	m.registry.Upsert(sess)
	logger.Error("session start failed",
		"container", sess.ContainerName,
		"host_port", sess.HostPort,
		"error", cause,
		"diagnostic", driver.Diagnostic(cause),
	)
	if cleanup {
		if err := m.remove(context.WithoutCancel(ctx), sess.ContainerName); err != nil {
			logger.Warn("failed container cleanup", "container", sess.ContainerName, "error", err)
		}
	}
	m.registry.Remove(sess.Key)
	return fmt.Errorf("start %s: %w", sess.Key, cause)
}

func (m *Manager) ensureImage(ctx context.Context, image string, logger *slog.Logger) error {
	inspectCtx, cancel := withTimeout(ctx, m.cfg.Timeouts.InspectTimeout())
	exists, err := m.driver.ImageExists(inspectCtx, image)
	cancel()
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	logger.Info("pulling image", "image", image)
	pullCtx, cancel := withTimeout(ctx, m.cfg.Timeouts.PullTimeout())
	defer cancel()
	started := m.clock.Now()
	if err := m.driver.PullImage(pullCtx, image); err != nil {
		logger.Error("image pull failed", "image", image, "error", err)
		return err
	}
	logger.Info("image pulled", "image", image, "duration", m.clock.Now().Sub(started))
	return nil
}

func (m *Manager) inspectRunning(ctx context.Context, name string) (bool, error) {
	ctx, cancel := withTimeout(ctx, m.cfg.Timeouts.InspectTimeout())
	defer cancel()
	return m.driver.InspectRunning(ctx, name)
}

func (m *Manager) remove(ctx context.Context, name string) error {
	ctx, cancel := withTimeout(ctx, m.cfg.Timeouts.RemoveTimeout())
	defer cancel()
	return m.driver.Remove(ctx, name)
}

func (m *Manager) tailLogs(ctx context.Context, name string) string {
	ctx, cancel := withTimeout(ctx, m.cfg.Timeouts.InspectTimeout())
	defer cancel()
	out, err := m.driver.Logs(ctx, name, startLogTail)
	if err != nil {
		return "container exited immediately"
	}
	if out == "" {
		return "container exited immediately with no output"
	}
	return out
}

// Ping reports whether the container runtime answers.
func (m *Manager) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, m.cfg.Timeouts.InspectTimeout())
	defer cancel()
	return m.driver.Ping(ctx)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func labels(key Key) map[string]string {
	return map[string]string{
		"labkasten.managed":  "true",
		"labkasten.owner":    key.Owner,
		"labkasten.resource": key.Resource,
		"labkasten.kind":     string(key.Kind),
	}
}

func accessURL(scheme, host string, port int) string {
	if scheme == "" {
		scheme = "http"
	}
	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
}
